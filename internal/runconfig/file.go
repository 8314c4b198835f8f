package runconfig

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
)

// LoadFile decodes the HCL run file at path on top of into. Attributes
// absent from the file keep their current value; unknown attributes are an
// error.
//
//	robot      = "panda_arm"
//	model_type = "ikflow"
//	nb_nodes   = 12
//	smoke_test = true
func LoadFile(ctx context.Context, path string, into *Flags) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading run file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse run file %s: %w", path, diags)
	}

	decoded := *into
	if diags := gohcl.DecodeBody(file.Body, nil, &decoded); diags.HasErrors() {
		return fmt.Errorf("failed to decode run file %s: %w", path, diags)
	}
	*into = decoded

	logger.Debug("Run file loaded.", "path", path)
	return nil
}
