// Package enrich stamps check outcomes onto a normalized roadmap and derives
// item completion, either by running checks live or by reconciling results a
// producer computed elsewhere.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"roadline/internal/checks"
	"roadline/internal/domain"
)

type Mode string

const (
	ModeLive     Mode = "live"
	ModeArtifact Mode = "artifact"
)

// ParseMode accepts an empty string as live.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLive:
		return ModeLive, nil
	case ModeArtifact:
		return ModeArtifact, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want live or artifact)", s)
	}
}

// DefaultMaxConcurrency runs items one at a time. Raising it changes the
// outbound request rate against the checked services.
const DefaultMaxConcurrency = 1

type Pipeline struct {
	Runner checks.Runner
	// MaxConcurrency bounds how many items are checked at once. Checks
	// within one item always run in order.
	MaxConcurrency int
	Logger         *zap.Logger
}

type itemRef struct {
	week, item int
}

// Enrich returns a copy of doc with every check stamped and item done
// flags derived. The input document is not modified. Cancellation is
// honored between items.
func (p Pipeline) Enrich(ctx context.Context, doc domain.Document, mode Mode, cc checks.Context) (domain.Document, error) {
	if mode == ModeLive && p.Runner == nil {
		return domain.Document{}, errors.New("live enrichment requires a check runner")
	}
	out := domain.CloneDocument(doc)
	var refs []itemRef
	for wi := range out.Weeks {
		for ii := range out.Weeks[wi].Items {
			refs = append(refs, itemRef{week: wi, item: ii})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())
	for _, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item := &out.Weeks[ref.week].Items[ref.item]
			for ci := range item.Checks {
				if mode == ModeLive {
					p.stampLive(gctx, &item.Checks[ci], cc)
				} else {
					reconcileArtifact(&item.Checks[ci])
				}
			}
			item.Done = deriveDone(*item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Document{}, fmt.Errorf("enrich: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Document{}, fmt.Errorf("enrich: %w", err)
	}
	p.logger().Debug("roadmap enriched",
		zap.String("mode", string(mode)),
		zap.Int("items", len(refs)),
		zap.String("progress", string(domain.DocumentProgress(out))))
	return out, nil
}

func (p Pipeline) stampLive(ctx context.Context, c *domain.Check, cc checks.Context) {
	res := p.Runner.Run(ctx, *c, cc)
	c.Status = string(res.Status)
	c.Result = c.Status
	c.Detail = mergeDetail(c.Detail, res.Note)
	c.Note = res.Note
	c.OK = DeriveOK(c.Status, nil)
}

// reconcileArtifact recovers a status from a precomputed payload: result,
// then status, then a bare ok boolean.
func reconcileArtifact(c *domain.Check) {
	status := strings.TrimSpace(c.Result)
	if status == "" {
		status = strings.TrimSpace(c.Status)
	}
	if status == "" && c.OK != nil {
		if *c.OK {
			status = string(domain.StatusPass)
		} else {
			status = string(domain.StatusFail)
		}
	}
	c.Status = status
	c.Result = status
	c.OK = DeriveOK(status, c.OK)
}

// deriveDone: an item with checks is done only when every check is ok. An
// item without checks keeps whatever was authored, including nothing.
func deriveDone(it domain.Item) *bool {
	if len(it.Checks) == 0 {
		return it.Done
	}
	for _, c := range it.Checks {
		if c.OK == nil || !*c.OK {
			return boolPtr(false)
		}
	}
	return boolPtr(true)
}

func mergeDetail(detail, note string) string {
	detail = strings.TrimSpace(detail)
	note = strings.TrimSpace(note)
	switch {
	case detail == "":
		return note
	case note == "" || note == detail:
		return detail
	default:
		return detail + " – " + note
	}
}

func (p Pipeline) concurrency() int {
	if p.MaxConcurrency > 0 {
		return p.MaxConcurrency
	}
	return DefaultMaxConcurrency
}

func (p Pipeline) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}
