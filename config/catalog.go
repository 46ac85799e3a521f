package config

import (
	"bgactions/tasks"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// CatalogTask is a task declared in the catalog file.
type CatalogTask struct {
	ID         string
	Executor   string
	Options    tasks.Options
	Parameters any
	Autostart  bool
}

// Catalog is the decoded task catalog, in file order.
type Catalog struct {
	Tasks []CatalogTask
}

type catalogFile struct {
	Tasks []*taskBlock `hcl:"task,block"`
}

type taskBlock struct {
	ID          string         `hcl:"id,label"`
	Executor    string         `hcl:"executor"`
	Title       string         `hcl:"title,optional"`
	Description string         `hcl:"description,optional"`
	Color       string         `hcl:"color,optional"`
	LinkingURI  string         `hcl:"linking_uri,optional"`
	Autostart   bool           `hcl:"autostart,optional"`
	Parameters  hcl.Expression `hcl:"parameters,optional"`
	Icon        *iconBlock     `hcl:"icon,block"`
	Progress    *progressBlock `hcl:"progress,block"`
}

type iconBlock struct {
	Name    string `hcl:"name"`
	Type    string `hcl:"type"`
	Package string `hcl:"package,optional"`
}

type progressBlock struct {
	Max           int  `hcl:"max,optional"`
	Value         int  `hcl:"value,optional"`
	Indeterminate bool `hcl:"indeterminate,optional"`
}

// LoadCatalog reads the catalog at path. An empty path yields an empty
// catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{}, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task catalog %s: %w", path, err)
	}
	return ParseCatalog(src, path)
}

// ParseCatalog decodes catalog source. filename is only used in diagnostics.
func ParseCatalog(src []byte, filename string) (*Catalog, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse task catalog %s: %w", filename, diags)
	}

	var root catalogFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode task catalog %s: %w", filename, diags)
	}

	catalog := &Catalog{Tasks: make([]CatalogTask, 0, len(root.Tasks))}
	seen := make(map[string]bool, len(root.Tasks))

	for _, block := range root.Tasks {
		if block.ID == "" {
			return nil, fmt.Errorf("task catalog %s: task id cannot be empty", filename)
		}
		if seen[block.ID] {
			return nil, fmt.Errorf("task catalog %s: task %q declared more than once", filename, block.ID)
		}
		seen[block.ID] = true

		task, err := translateTask(block)
		if err != nil {
			return nil, fmt.Errorf("task catalog %s: task %q: %w", filename, block.ID, err)
		}
		catalog.Tasks = append(catalog.Tasks, task)
	}

	return catalog, nil
}

func translateTask(block *taskBlock) (CatalogTask, error) {
	task := CatalogTask{
		ID:        block.ID,
		Executor:  block.Executor,
		Autostart: block.Autostart,
		Options: tasks.Options{
			Title:       block.Title,
			Description: block.Description,
			Color:       block.Color,
			LinkingURI:  block.LinkingURI,
		},
	}

	if block.Icon != nil {
		task.Options.Icon = tasks.Icon{
			Name:    block.Icon.Name,
			Type:    block.Icon.Type,
			Package: block.Icon.Package,
		}
	}
	if block.Progress != nil {
		task.Options.ProgressBar = &tasks.ProgressBar{
			Max:           block.Progress.Max,
			Value:         block.Progress.Value,
			Indeterminate: block.Progress.Indeterminate,
		}
	}

	if block.Parameters != nil {
		val, diags := block.Parameters.Value(nil)
		if diags.HasErrors() {
			return CatalogTask{}, fmt.Errorf("invalid parameters: %w", diags)
		}
		params, err := ctyToNative(val)
		if err != nil {
			return CatalogTask{}, fmt.Errorf("invalid parameters: %w", err)
		}
		task.Parameters = params
	}

	return task, nil
}

// ctyToNative converts a cty.Value into plain Go values: strings, float64,
// bools, []any and map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0)
		it := v.ElementIterator()
		for it.Next() {
			_, val := it.Element()
			native, err := ctyToNative(val)
			if err != nil {
				return nil, err
			}
			slice = append(slice, native)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, val := it.Element()
			native, err := ctyToNative(val)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", ty.FriendlyName())
	}
}
