package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"specli/internal/domain"
	"specli/internal/generator"
)

// GenerateCLIUseCase turns a schema source into a ready-to-mount command
// tree: parse, transform paths, synthesize commands.
type GenerateCLIUseCase struct {
	parser SpecParser
	logger *slog.Logger
}

func NewGenerateCLIUseCase(parser SpecParser, logger *slog.Logger) *GenerateCLIUseCase {
	return &GenerateCLIUseCase{
		parser: parser,
		logger: logger.With("usecase", "GenerateCLI"),
	}
}

// Execute parses the source and builds the command tree with the given
// rules, binding every leaf to exec. The parsed spec is returned alongside
// the tree for callers that need servers or security metadata.
func (uc *GenerateCLIUseCase) Execute(ctx context.Context, src string, rules domain.PathRulesConfig, exec domain.ExecuteFunc) (*domain.CommandNode, domain.ParsedSpec, error) {
	log := uc.logger.With(slog.String("source", src))

	spec, err := uc.parser.Parse(ctx, src)
	if err != nil {
		return nil, domain.ParsedSpec{}, fmt.Errorf("parsing schema source: %w", err)
	}
	if len(spec.Operations) == 0 {
		log.Warn("Schema declares no operations")
	}

	tree := generator.BuildCommandTree(spec, rules, exec, uc.logger)

	log.Info("Generated command tree",
		slog.Int("operations", len(spec.Operations)),
		slog.Int("top_level_groups", len(tree.Children)))
	return tree, spec, nil
}
