package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/SamuelMarks/taskflow/internal/ctxlog"
)

// evalContext supplies the size constants pipeline files may use in
// attribute expressions, e.g. `size = 64 * kb`.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"kb": cty.NumberIntVal(1 << 10),
			"mb": cty.NumberIntVal(1 << 20),
		},
	}
}

// Load parses and validates a pipeline configuration file.
func Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading pipeline configuration.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parsing %s: %w", path, diags)
	}
	return decode(ctx, file.Body)
}

// LoadSource parses configuration from an in-memory buffer. Used by
// tests and by callers that assemble pipelines programmatically.
func LoadSource(ctx context.Context, filename string, src []byte) (*Model, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("config: parsing %s: %w", filename, diags)
	}
	return decode(ctx, file.Body)
}

func decode(ctx context.Context, body hcl.Body) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	var model Model
	if diags := gohcl.DecodeBody(body, evalContext(), &model); diags.HasErrors() {
		return nil, fmt.Errorf("config: decoding pipeline model: %w", diags)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded.", "pipelines", len(model.Pipelines))
	return &model, nil
}
