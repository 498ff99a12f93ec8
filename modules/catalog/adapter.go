package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// VariantAdapter reads live variant data through services.catalog.get-variant.
// Modules that depend on the catalog use it instead of the catalog service.
type VariantAdapter struct {
	container mono.ServiceContainer
}

// NewVariantAdapter creates a new VariantAdapter.
func NewVariantAdapter(container mono.ServiceContainer) *VariantAdapter {
	return &VariantAdapter{container: container}
}

// GetVariants returns the variants that exist among ids.
func (a *VariantAdapter) GetVariants(ctx context.Context, ids []string) (map[string]VariantInfo, error) {
	req := GetVariantRequest{IDs: ids}
	var resp GetVariantResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"get-variant",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get-variant request failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("get-variant: %s", resp.Error)
	}
	if resp.Variants == nil {
		resp.Variants = map[string]VariantInfo{}
	}
	return resp.Variants, nil
}
