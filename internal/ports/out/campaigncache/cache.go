package campaigncache

import (
	"context"

	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
)

// Cache is a non-authoritative copy of the campaign list.
// Callers must treat every error as a miss and fall back to the campaign repository.
type Cache interface {
	GetList(ctx context.Context) ([]campaignrepo.Campaign, bool, error)
	PutList(ctx context.Context, cs []campaignrepo.Campaign) error
	Invalidate(ctx context.Context) error
}

// Nop never hits.
type Nop struct{}

func (Nop) GetList(context.Context) ([]campaignrepo.Campaign, bool, error) { return nil, false, nil }
func (Nop) PutList(context.Context, []campaignrepo.Campaign) error         { return nil }
func (Nop) Invalidate(context.Context) error                              { return nil }
