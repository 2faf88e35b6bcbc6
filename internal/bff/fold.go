package bff

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
	"github.com/iagopasso/revendis-sub001/internal/fetch"
)

// outcome is the final state of a profile fold.
type outcome struct {
	res fetch.JSONResponse
	// code is empty on success, else the failure code of the last attempt.
	code string
}

func (o outcome) ok() bool { return o.code == "" }

// step performs one request with a profile. retry reports whether the next
// profile should be tried.
type step func(ctx context.Context, p Profile) (res fetch.JSONResponse, code string, retry bool, err error)

// fold tries profiles in order until one succeeds or fails with a status
// that is not worth retrying. Every failed attempt is returned in order.
// The error is non-nil only when ctx is done.
func fold(ctx context.Context, profiles []Profile, do step) (outcome, []catalog.Attempt, error) {
	var (
		last     outcome
		attempts []catalog.Attempt
	)
	for _, p := range profiles {
		res, code, retry, err := do(ctx, p)
		if err != nil {
			return outcome{}, attempts, err
		}
		last = outcome{res: res, code: code}
		if code == "" {
			return last, attempts, nil
		}
		attempts = append(attempts, catalog.Attempt{Profile: p.Name, Error: code})
		if !retry {
			break
		}
		zctx.From(ctx).Debug("Retrying with next profile",
			zap.String("profile", p.Name),
			zap.String("code", code),
		)
	}
	if len(profiles) == 0 {
		last.code = "no_profiles"
	}
	return last, attempts, nil
}
