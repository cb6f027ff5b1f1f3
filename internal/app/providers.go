package app

import (
	"context"
	"fmt"

	"github.com/agis/unical/internal/aggregate"
	"github.com/agis/unical/internal/auth"
	"github.com/agis/unical/internal/contract"
	"github.com/agis/unical/internal/provider"
)

// providerFactory builds the registry of signed-in providers. The returned
// release func must be called once the command is done with them.
var providerFactory = signedInProviders

var openTokenStore = auth.OpenStore

func signedInProviders(ctx context.Context, ro *globalOptions) (provider.Registry, func(), error) {
	store, err := openTokenStore(ro.TokenDB)
	if err != nil {
		return nil, nil, err
	}
	release := func() { _ = store.Close() }

	sources, err := store.SignedIn(ctx, ro.Account)
	if err != nil {
		release()
		return nil, nil, err
	}
	reg := provider.Registry{}
	for _, src := range sources {
		cfg, err := auth.Config(src, ro.providerConfig(src).credentials())
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("%w: %v", errProviderConfig, err)
		}
		client, err := auth.Client(ctx, cfg, store, src, ro.Account)
		if err != nil {
			release()
			return nil, nil, err
		}
		switch src {
		case contract.SourceGoogle:
			p, err := provider.NewGoogle(ctx, client, ro.Google.CalendarID)
			if err != nil {
				release()
				return nil, nil, err
			}
			reg[src] = p
		case contract.SourceOutlook:
			reg[src] = provider.NewOutlook(client, ro.Outlook.BaseURL)
		}
	}
	return reg, release, nil
}

// aggregator opens the signed-in providers and wraps them for this session.
func (s *session) aggregator(ctx context.Context) (*aggregate.Aggregator, func(), error) {
	reg, release, err := providerFactory(ctx, s.opts)
	if err != nil {
		return nil, nil, err
	}
	if release == nil {
		release = func() {}
	}
	s.logger.Debug("providers", "signed_in", reg.Sources())
	return aggregate.New(reg, s.engine, s.logger), release, nil
}
