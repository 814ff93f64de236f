// Package cli is the inbound adapter mapping the synthesized command tree
// onto cobra: typed flags, positional arguments, request-body assembly,
// and the built-in management commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"specli/internal/domain"
)

// MountTree converts a command tree into cobra commands under parent.
// Group nodes become plain sub-commands; leaves get flags, argument
// validation, and a RunE that collects values and calls the bound
// ExecuteFunc.
func MountTree(parent *cobra.Command, node *domain.CommandNode) {
	for _, child := range node.Children {
		if child.Leaf != nil {
			parent.AddCommand(buildLeafCommand(child))
			continue
		}
		group := &cobra.Command{
			Use:   child.Name,
			Short: firstLine(child.Help),
		}
		MountTree(group, child)
		parent.AddCommand(group)
	}
}

func buildLeafCommand(node *domain.CommandNode) *cobra.Command {
	leaf := node.Leaf

	use := node.Name
	for _, arg := range leaf.Args {
		use += " <" + arg.Name + ">"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: firstLine(node.Help),
		Long:  node.Help,
		Args:  cobra.ExactArgs(len(leaf.Args)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaf(cmd, leaf, args)
		},
	}

	for _, opt := range leaf.Opts {
		registerFlag(cmd.Flags(), opt)
	}
	return cmd
}

func registerFlag(flags *pflag.FlagSet, opt domain.ParamSpec) {
	help := opt.Help
	if opt.Required {
		help = strings.TrimSpace(help + "  (required)")
	}

	switch opt.Kind {
	case domain.KindInt:
		var def int64
		if opt.HasDefault {
			def = toInt64(opt.Default)
		}
		flags.Int64(opt.Name, def, help)
	case domain.KindFloat:
		var def float64
		if opt.HasDefault {
			def = toFloat64(opt.Default)
		}
		flags.Float64(opt.Name, def, help)
	case domain.KindBool:
		var def bool
		if opt.HasDefault {
			def, _ = opt.Default.(bool)
		}
		flags.Bool(opt.Name, def, help)
	default:
		var def string
		if opt.HasDefault {
			def = fmt.Sprintf("%v", opt.Default)
		}
		flags.String(opt.Name, def, help)
	}
}

// runLeaf gathers positional arguments, changed flags, and the request
// body, then fires the execute callback. Only values the user supplied
// (or that carry schema defaults) reach the request.
func runLeaf(cmd *cobra.Command, leaf *domain.LeafCommand, args []string) error {
	params := make(map[string]any)

	for i, spec := range leaf.Args {
		value, err := coerceArg(spec, args[i])
		if err != nil {
			return err
		}
		params[paramKey(spec)] = value
	}

	var bodyFields map[string]any
	var bodyOverride string

	for _, opt := range leaf.Opts {
		flag := cmd.Flags().Lookup(opt.Name)
		if flag == nil {
			continue
		}
		// Schema defaults for query/header params are sent explicitly;
		// body-field defaults are left to the server.
		supplied := flag.Changed || (opt.HasDefault && !opt.Body && !opt.BodyField)
		if !supplied {
			continue
		}

		value, err := flagValue(cmd, opt)
		if err != nil {
			return err
		}

		switch {
		case opt.Body:
			bodyOverride, _ = value.(string)
		case opt.BodyField:
			if bodyFields == nil {
				bodyFields = make(map[string]any)
			}
			bodyFields[opt.OriginalName] = value
		default:
			params[paramKey(opt)] = value
		}
	}

	if err := checkRequired(cmd, leaf); err != nil {
		return err
	}

	body, contentType, err := assembleBody(leaf, bodyOverride, bodyFields)
	if err != nil {
		return err
	}

	method := strings.ToUpper(string(leaf.Operation.Method))
	return leaf.Execute(cmd.Context(), method, leaf.Operation.Path, params, body, contentType)
}

// checkRequired enforces required named options (cobra only validates
// positionals for us).
func checkRequired(cmd *cobra.Command, leaf *domain.LeafCommand) error {
	var missing []string
	for _, opt := range leaf.Opts {
		if !opt.Required || opt.Body || opt.BodyField {
			continue
		}
		if flag := cmd.Flags().Lookup(opt.Name); flag != nil && !flag.Changed && !opt.HasDefault {
			missing = append(missing, "--"+opt.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required options: %s", strings.Join(missing, ", "))
	}
	return nil
}

// assembleBody resolves the request body: an explicit --body value (inline
// or @file) wins; otherwise individual body-field options are assembled
// into a JSON object and checked against the schema's required list.
func assembleBody(leaf *domain.LeafCommand, override string, fields map[string]any) (string, string, error) {
	if leaf.ContentType == "" {
		return "", "", nil
	}

	if override != "" {
		body, err := resolveBodyValue(override)
		if err != nil {
			return "", "", err
		}
		return body, leaf.ContentType, nil
	}

	if len(fields) == 0 {
		if len(leaf.BodyRequired) > 0 && leaf.Operation.RequestBody != nil && leaf.Operation.RequestBody.Required {
			return "", "", fmt.Errorf("request body is required: provide --body or field options (%s)", strings.Join(requiredFlags(leaf), ", "))
		}
		return "", "", nil
	}

	var missing []string
	for _, name := range leaf.BodyRequired {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", "", fmt.Errorf("missing required body fields: %s", strings.Join(missing, ", "))
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", "", fmt.Errorf("encoding request body: %w", err)
	}
	return string(encoded), leaf.ContentType, nil
}

// resolveBodyValue handles the @file convention: "@payload.json" reads the
// body from disk, "@-" from stdin-like values is not supported, everything
// else is inline.
func resolveBodyValue(value string) (string, error) {
	if !strings.HasPrefix(value, "@") {
		return value, nil
	}
	path := strings.TrimPrefix(value, "@")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading body file %s: %w", path, err)
	}
	return string(data), nil
}

func requiredFlags(leaf *domain.LeafCommand) []string {
	flags := make([]string, 0, len(leaf.BodyRequired))
	for _, opt := range leaf.Opts {
		if opt.BodyField && contains(leaf.BodyRequired, opt.OriginalName) {
			flags = append(flags, "--"+opt.Name)
		}
	}
	sort.Strings(flags)
	return flags
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func flagValue(cmd *cobra.Command, opt domain.ParamSpec) (any, error) {
	switch opt.Kind {
	case domain.KindInt:
		return cmd.Flags().GetInt64(opt.Name)
	case domain.KindFloat:
		return cmd.Flags().GetFloat64(opt.Name)
	case domain.KindBool:
		return cmd.Flags().GetBool(opt.Name)
	default:
		raw, err := cmd.Flags().GetString(opt.Name)
		if err != nil {
			return nil, err
		}
		return decodeComposite(opt, raw)
	}
}

// decodeComposite turns flag text for object/array body fields back into
// structured values so the assembled JSON body nests properly.
func decodeComposite(opt domain.ParamSpec, raw string) (any, error) {
	if opt.SchemaType != "object" && opt.SchemaType != "array" {
		return raw, nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("--%s expects JSON (%s): %w", opt.Name, opt.SchemaType, err)
	}
	return value, nil
}

func coerceArg(spec domain.ParamSpec, raw string) (any, error) {
	switch spec.Kind {
	case domain.KindInt:
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument <%s> expects an integer, got %q", spec.Name, raw)
		}
		return value, nil
	case domain.KindFloat:
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("argument <%s> expects a number, got %q", spec.Name, raw)
		}
		return value, nil
	case domain.KindBool:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("argument <%s> expects true or false, got %q", spec.Name, raw)
		}
		return value, nil
	default:
		return raw, nil
	}
}

// toInt64 and toFloat64 normalize schema defaults, which arrive as
// whatever numeric type the JSON/YAML decoder produced.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// paramKey is the name the execute callback sees: the original spec name,
// so requests carry exactly what the API declared.
func paramKey(spec domain.ParamSpec) string {
	if spec.OriginalName != "" {
		return spec.OriginalName
	}
	return spec.Name
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
