package rdf

import (
	"context"
	"fmt"

	"github.com/knakk/rdf"
	"golang.org/x/sync/errgroup"

	"github.com/Pret-a-LLOD/Fintan/component"
	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
	"github.com/Pret-a-LLOD/Fintan/segment"
	"github.com/Pret-a-LLOD/Fintan/stream"
)

// Rule rewrites the predicate of matching triples. A rule either renames
// Predicate to ReplaceWith or drops every triple whose predicate is
// DropPredicate.
type Rule struct {
	Predicate     string `mapstructure:"predicate"`
	ReplaceWith   string `mapstructure:"replaceWith" validate:"required_with=Predicate"`
	DropPredicate string `mapstructure:"dropPredicate" validate:"required_without=Predicate"`
}

type updaterConfig struct {
	Updates []Rule `mapstructure:"updates" validate:"dive"`
	Threads int    `mapstructure:"threads" validate:"gte=0"`
}

type compiledRule struct {
	match   string
	replace rdf.IRI
	drop    bool
}

// RDFUpdater applies predicate rules to every segment of each named stream.
// With threads above one, segments of a stream are rewritten concurrently
// and emitted in input order.
type RDFUpdater struct {
	*component.Base
	rules   []compiledRule
	threads int
}

// NewRDFUpdater is the RDFUpdater factory.
func NewRDFUpdater(spec component.Spec, deps component.Dependencies) (component.StreamComponent, error) {
	var cfg updaterConfig
	if err := spec.Node.Decode(&cfg); err != nil {
		return nil, err
	}
	rules := make([]compiledRule, 0, len(cfg.Updates))
	for i, u := range cfg.Updates {
		if u.DropPredicate != "" {
			rules = append(rules, compiledRule{match: u.DropPredicate, drop: true})
			continue
		}
		iri, err := rdf.NewIRI(u.ReplaceWith)
		if err != nil {
			return nil, apperrors.ConfigInvalid(fmt.Sprintf("updates[%d].replaceWith: %v", i, err))
		}
		rules = append(rules, compiledRule{match: u.Predicate, replace: iri})
	}
	return &RDFUpdater{
		Base:    component.NewBase(spec, component.CategoryUpdater, deps),
		rules:   rules,
		threads: max(cfg.Threads, 1),
	}, nil
}

func (u *RDFUpdater) Start(ctx context.Context) error {
	return component.ForEachStream(ctx, u.Base, u.update)
}

func (u *RDFUpdater) update(ctx context.Context, name string, in stream.Input, _ stream.Output) error {
	if u.threads == 1 {
		return u.EachSegment(ctx, name, in, func(s segment.Segment) error {
			return u.Emit(ctx, name, u.apply(s))
		})
	}

	pending := make(chan chan segment.Segment, u.threads)
	var workers errgroup.Group
	workers.SetLimit(u.threads)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(pending)
		return u.EachSegment(gctx, name, in, func(s segment.Segment) error {
			res := make(chan segment.Segment, 1)
			select {
			case pending <- res:
			case <-gctx.Done():
				return gctx.Err()
			}
			workers.Go(func() error {
				res <- u.apply(s)
				return nil
			})
			return nil
		})
	})
	g.Go(func() error {
		for res := range pending {
			if err := u.Emit(gctx, name, <-res); err != nil {
				return err
			}
		}
		return nil
	})
	err := g.Wait()
	_ = workers.Wait()
	return err
}

// apply returns a rewritten copy of s.
func (u *RDFUpdater) apply(s segment.Segment) segment.Segment {
	out := s.Clone()
	out.Triples = out.Triples[:0]
	for _, t := range s.Triples {
		keep := true
		for _, r := range u.rules {
			if t.Pred.String() != r.match {
				continue
			}
			if r.drop {
				keep = false
				break
			}
			t.Pred = r.replace
		}
		if keep {
			out.Triples = append(out.Triples, t)
		}
	}
	return out
}
