// Package verify checks that the editor's most recent save produced the
// document expected for a scenario.
//
// The save log is fetched and decoded, its "version" field dropped and its
// "data" field normalized for the browser that produced it. The result must
// equal {"command": "save", "data": <expected>} exactly. Because the save is
// asynchronous from the driver's point of view, the check is retried through
// a condition.Evaluator until it holds or the poll timeout elapses.
package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/condition"
	"github.com/xkilldash9x/wedcheck/internal/normalize"
	"github.com/xkilldash9x/wedcheck/internal/savelog"
	"github.com/xkilldash9x/wedcheck/internal/scenario"
)

// SaveCommand is the command every save envelope must carry.
const SaveCommand = "save"

// EnvelopeSource yields the most recent save envelope.
type EnvelopeSource interface {
	Fetch(ctx context.Context) (savelog.Envelope, error)
}

// Mismatch is the payload of a failed comparison.
type Mismatch struct {
	Actual   savelog.Envelope
	Expected savelog.Envelope
	// Diff is a go-cmp report, "-" for expected and "+" for actual.
	Diff string
}

// MismatchError reports saved data that never matched. Actual and Expected
// are complete, never truncated.
type MismatchError struct {
	Scenario string
	Actual   savelog.Envelope
	Expected savelog.Envelope
	Diff     string
	// Err is the underlying *condition.TimeoutError.
	Err error
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("saved data for scenario %q does not match:\nactual:   %v\nexpected: %v\ndiff (-expected +actual):\n%s",
		e.Scenario, e.Actual, e.Expected, e.Diff)
}

func (e *MismatchError) Unwrap() error { return e.Err }

// Expected builds the envelope a save of doc must produce.
func Expected(doc string) savelog.Envelope {
	return savelog.Envelope{"command": SaveCommand, "data": doc}
}

// Prepare returns actual without "version" and with "data" rewritten into
// canonical attribute order for the given serializer identity.
func Prepare(actual savelog.Envelope, n *normalize.Normalizer) savelog.Envelope {
	out := actual.WithoutVersion()
	if data, ok := out.Data(); ok && n != nil {
		out["data"] = n.Normalize(data)
	}
	return out
}

// Compare reports whether the prepared envelope equals the expectation for
// doc. A nil result means they match.
func Compare(actual savelog.Envelope, n *normalize.Normalizer, doc string) *Mismatch {
	prepared := Prepare(actual, n)
	expected := Expected(doc)
	if cmp.Equal(expected, prepared) {
		return nil
	}
	return &Mismatch{Actual: prepared, Expected: expected, Diff: cmp.Diff(expected, prepared)}
}

// Verifier runs the save check for named scenarios.
type Verifier struct {
	source     EnvelopeSource
	table      *scenario.Table
	identity   normalize.Identity
	normalizer *normalize.Normalizer
	evaluator  *condition.Evaluator
	logger     *zap.Logger
}

// New creates a Verifier. A nil table means the built-in table.
func New(source EnvelopeSource, table *scenario.Table, identity normalize.Identity, evaluator *condition.Evaluator, logger *zap.Logger) *Verifier {
	if table == nil {
		table = scenario.Builtin()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = condition.New(condition.Options{}, logger)
	}
	return &Verifier{
		source:     source,
		table:      table,
		identity:   identity,
		normalizer: normalize.ForIdentity(identity),
		evaluator:  evaluator,
		logger:     logger.Named("verify"),
	}
}

// Identity returns the serializer identity the verifier normalizes for.
func (v *Verifier) Identity() normalize.Identity { return v.identity }

// Check fetches the save log once and compares it with doc. A fetch or
// decode failure is returned as an error; a mismatch is an unsatisfied
// Result carrying *Mismatch.
func (v *Verifier) Check(ctx context.Context, doc string) (condition.Result, error) {
	actual, err := v.source.Fetch(ctx)
	if err != nil {
		return condition.Result{}, err
	}
	if m := Compare(actual, v.normalizer, doc); m != nil {
		return condition.Failure(m), nil
	}
	return condition.Success(actual), nil
}

// Verify waits until the saved data matches the expected document for name.
// An unknown name fails at once without polling.
func (v *Verifier) Verify(ctx context.Context, name string) error {
	doc, err := v.table.Lookup(name)
	if err != nil {
		return err
	}

	logger := v.logger.With(zap.String("scenario", name), zap.Stringer("identity", v.identity))
	logger.Debug("Verifying saved data.")

	_, err = v.evaluator.Wait(ctx, func(ctx context.Context) (condition.Result, error) {
		return v.Check(ctx, doc)
	})
	if err == nil {
		logger.Info("Saved data matches.")
		return nil
	}

	var timeout *condition.TimeoutError
	if errors.As(err, &timeout) {
		if m, ok := timeout.Last.Payload.(*Mismatch); ok {
			logger.Warn("Saved data does not match.", zap.Int("attempts", timeout.Attempts), zap.NamedError("last_error", timeout.LastErr))
			return &MismatchError{
				Scenario: name,
				Actual:   m.Actual,
				Expected: m.Expected,
				Diff:     m.Diff,
				Err:      err,
			}
		}
	}
	logger.Warn("Saved data could not be verified.", zap.Error(err))
	return fmt.Errorf("verifying scenario %q: %w", name, err)
}
