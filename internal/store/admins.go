package store

import (
	"fmt"
	"time"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
)

// Admin is a row of the authority set.
type Admin struct {
	Identity ir.Identity
	AddedBy  ir.Identity
	AddedAt  time.Time
}

// InsertAdmin adds identity to the admin set. It reports whether a row was
// inserted; adding an existing admin is a no-op.
func (t *Tx) InsertAdmin(identity, by ir.Identity, at time.Time) (bool, error) {
	res, err := t.exec(`
		INSERT INTO admins (identity, added_by, added_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO NOTHING
	`, string(identity), string(by), toNanos(at))
	if err != nil {
		return false, fmt.Errorf("insert admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert admin: %w", err)
	}
	return n == 1, nil
}

// DeleteAdmin removes identity from the admin set and reports whether it
// was present.
func (t *Tx) DeleteAdmin(identity ir.Identity) (bool, error) {
	res, err := t.exec(`DELETE FROM admins WHERE identity = ?`, string(identity))
	if err != nil {
		return false, fmt.Errorf("delete admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete admin: %w", err)
	}
	return n == 1, nil
}

// IsAdmin reports whether identity is in the admin set.
func (t *Tx) IsAdmin(identity ir.Identity) (bool, error) {
	var n int
	err := t.queryRow(`SELECT COUNT(*) FROM admins WHERE identity = ?`, string(identity)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return n > 0, nil
}

// ListAdmins returns the admin set ordered by identity.
func (t *Tx) ListAdmins() ([]Admin, error) {
	rows, err := t.query(`
		SELECT identity, added_by, added_at FROM admins
		ORDER BY identity COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query admins: %w", err)
	}
	defer rows.Close()

	admins := []Admin{}
	for rows.Next() {
		var (
			identity, by string
			at           int64
		)
		if err := rows.Scan(&identity, &by, &at); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, Admin{
			Identity: ir.Identity(identity),
			AddedBy:  ir.Identity(by),
			AddedAt:  fromNanos(at),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admins: %w", err)
	}
	return admins, nil
}
