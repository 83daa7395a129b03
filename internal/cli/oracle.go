package cli

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ledger"
)

//go:embed callback.schema.json
var callbackSchemaSource string

const callbackSchemaURL = "https://civbuilder.local/schemas/callback.schema.json"

var callbackSchema = jsonschema.MustCompileString(callbackSchemaURL, callbackSchemaSource)

// CallbackDocument is the JSON form of an oracle callback.
type CallbackDocument struct {
	RequestID  string `json:"request_id"`
	Tag        string `json:"tag"`
	Cleartexts string `json:"cleartexts"`
	Proof      string `json:"proof"`
}

func (d CallbackDocument) String() string {
	data, _ := json.MarshalIndent(d, "", "  ")
	return string(data)
}

// ParseCallback validates data against the callback schema and decodes it.
func ParseCallback(data []byte) (ledger.Callback, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return ledger.Callback{}, fmt.Errorf("decode callback: %w", err)
	}
	if err := callbackSchema.Validate(raw); err != nil {
		return ledger.Callback{}, fmt.Errorf("invalid callback: %w", err)
	}

	var doc CallbackDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ledger.Callback{}, fmt.Errorf("decode callback: %w", err)
	}
	id, err := ir.ParseRequestID(doc.RequestID)
	if err != nil {
		return ledger.Callback{}, err
	}
	cleartexts, err := decodeHex(doc.Cleartexts)
	if err != nil {
		return ledger.Callback{}, fmt.Errorf("cleartexts: %w", err)
	}
	proof, err := decodeHex(doc.Proof)
	if err != nil {
		return ledger.Callback{}, fmt.Errorf("proof: %w", err)
	}
	return ledger.Callback{
		RequestID:  id,
		Tag:        fhe.CallbackTag(doc.Tag),
		Cleartexts: cleartexts,
		Proof:      proof,
	}, nil
}

// NewCallbackDocument renders a callback as JSON.
func NewCallbackDocument(cb ledger.Callback) CallbackDocument {
	return CallbackDocument{
		RequestID:  cb.RequestID.Dec(),
		Tag:        string(cb.Tag),
		Cleartexts: "0x" + hex.EncodeToString(cb.Cleartexts),
		Proof:      "0x" + hex.EncodeToString(cb.Proof),
	}
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// NewOracleCommand creates the oracle command group. It plays the devnet
// decryption oracle against the local ledger.
func NewOracleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Answer decryption requests with the devnet oracle",
	}
	cmd.AddCommand(newOraclePendingCommand(rootOpts))
	cmd.AddCommand(newOracleSignCommand(rootOpts))
	cmd.AddCommand(newOracleFulfillCommand(rootOpts))
	return cmd
}

func newOraclePendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending decryption requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				pending, err := a.ledger.ListPendingRequests(cmd.Context())
				if err != nil {
					return err
				}
				out := make(requestList, len(pending))
				for i, r := range pending {
					out[i] = newRequestView(r)
				}
				return f.Success(out)
			})
		},
	}
}

func newOracleSignCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <request-id>",
		Short: "Print the callback the devnet oracle would send for a request",
		Long: `Decrypt a pending request with the devnet oracle and print the callback
document without delivering it. Feed the output to
"civbuilder oracle fulfill --callback" to deliver it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return withApp(rootOpts, f, func(a *app) error {
				id, err := ir.ParseRequestID(args[0])
				if err != nil {
					return NewExitError(ExitCommandError, err.Error())
				}
				req, err := a.ledger.GetRequest(cmd.Context(), id)
				if err != nil {
					return err
				}
				if _, err := a.resume(cmd.Context()); err != nil {
					return err
				}
				cleartexts, proof, err := a.devnet.Decrypt(cmd.Context(), id)
				if err != nil {
					return WrapExitError(ExitFailure, "oracle cannot answer request", err)
				}
				return f.Success(NewCallbackDocument(ledger.Callback{
					RequestID:  id,
					Tag:        fhe.TagFor(req.Target.Kind),
					Cleartexts: cleartexts,
					Proof:      proof,
				}))
			})
		},
	}
}

type fulfillFailure struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

type fulfillReport struct {
	Delivered []disclosureView `json:"delivered"`
	Failed    []fulfillFailure `json:"failed"`
}

func (r fulfillReport) String() string {
	var b strings.Builder
	for _, d := range r.Delivered {
		fmt.Fprintln(&b, d.String())
	}
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "request %s failed: %s\n", f.RequestID, f.Error)
	}
	fmt.Fprintf(&b, "%d delivered, %d failed", len(r.Delivered), len(r.Failed))
	return b.String()
}

func newOracleFulfillCommand(rootOpts *RootOptions) *cobra.Command {
	var callbackPath string

	cmd := &cobra.Command{
		Use:   "fulfill",
		Short: "Deliver decryption callbacks",
		Long: `Without --callback, answer every pending request with the devnet oracle
and deliver the callbacks through the relay.

With --callback, validate a callback document (file path, or - for stdin)
against the callback schema and deliver it as is.

Examples:
  civbuilder oracle fulfill
  civbuilder oracle sign 1234 > cb.json && civbuilder oracle fulfill --callback cb.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if callbackPath != "" {
				return fulfillCallback(rootOpts, f, cmd, callbackPath)
			}
			return withApp(rootOpts, f, func(a *app) error {
				n, err := a.resume(cmd.Context())
				if err != nil {
					return err
				}
				f.VerboseLog("resumed %d pending request(s)", n)

				report := fulfillReport{Delivered: []disclosureView{}, Failed: []fulfillFailure{}}
				for _, res := range a.relay.Drain(cmd.Context()) {
					if res.Err != nil {
						report.Failed = append(report.Failed, fulfillFailure{
							RequestID: res.Job.RequestID.Dec(),
							Error:     res.Err.Error(),
						})
						continue
					}
					report.Delivered = append(report.Delivered, newDisclosureView(res.Disclosure))
				}
				if err := f.Success(report); err != nil {
					return err
				}
				if len(report.Failed) > 0 {
					return &ExitError{
						Code:     ExitFailure,
						Message:  fmt.Sprintf("%d callback(s) failed", len(report.Failed)),
						Reported: true,
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&callbackPath, "callback", "", "callback document to deliver (- for stdin)")

	return cmd
}

func fulfillCallback(rootOpts *RootOptions, f *OutputFormatter, cmd *cobra.Command, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "failed to read callback", err))
	}
	cb, err := ParseCallback(data)
	if err != nil {
		return f.Fail(WrapExitError(ExitCommandError, "rejected callback document", err))
	}

	return withApp(rootOpts, f, func(a *app) error {
		if _, err := a.resume(cmd.Context()); err != nil {
			return err
		}
		d, err := a.ledger.HandleDecryption(cmd.Context(), cb)
		if err != nil {
			return err
		}
		return f.Success(newDisclosureView(d))
	})
}
