package datastore

import (
	"fmt"
	"strings"

	"sakura_marketplace/internal/infrastructure/configloader"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// queryer is the PostgREST entry point. Both *supabase.Client and *postgrest.Client satisfy it.
type queryer interface {
	From(table string) *postgrest.QueryBuilder
}

// NewClient connects to the hosted project described by cfg.
func NewClient(cfg configloader.SupabaseConfig) (*supabase.Client, error) {
	client, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}
