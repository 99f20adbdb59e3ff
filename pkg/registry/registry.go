// Package registry provides node factory registration and config validation.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/protocol"
)

// Registry maps node types to their handler factories.
type Registry struct {
	logger        *slog.Logger
	nodeFactories map[string]protocol.NodeFactory
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		nodeFactories: make(map[string]protocol.NodeFactory),
	}
}

// RegisterNode registers a node factory under its type ID.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.nodeFactories[factory.ID()] = factory
}

// CreateHandler instantiates the handler for a node, parsing its config.
func (r *Registry) CreateHandler(ctx context.Context, node *models.Node) (protocol.NodeHandler, error) {
	factory, ok := r.nodeFactories[string(node.Type)]
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", node.Type)
	}

	return factory.Create(ctx, node)
}

// NodeFactory returns the registered factory for a node type.
func (r *Registry) NodeFactory(nodeType string) (protocol.NodeFactory, bool) {
	factory, ok := r.nodeFactories[nodeType]

	return factory, ok
}

// NodeTypes returns all registered node type IDs.
func (r *Registry) NodeTypes() []string {
	types := make([]string, 0, len(r.nodeFactories))
	for t := range r.nodeFactories {
		types = append(types, t)
	}

	return types
}

// ValidateNodeConfig checks a node's config against its factory's JSON
// schema. Unknown node types fail so a workflow can never be saved with a
// node the engine cannot execute.
func (r *Registry) ValidateNodeConfig(node *models.Node) error {
	factory, ok := r.nodeFactories[string(node.Type)]
	if !ok {
		return fmt.Errorf("node type '%s' not registered", node.Type)
	}

	schemaJSON, err := json.Marshal(factory.Schema())
	if err != nil {
		return fmt.Errorf("failed to encode schema for node type '%s': %w", node.Type, err)
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config for node '%s': %w", node.ID, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(configJSON),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed for node '%s': %w", node.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return &models.ConfigurationError{
			NodeID: node.ID,
			Reason: "invalid config: " + strings.Join(details, "; "),
		}
	}

	return nil
}

// ValidateWorkflow validates the graph structure and every node's config.
func (r *Registry) ValidateWorkflow(workflow *models.Workflow) error {
	if err := workflow.ValidateGraph(); err != nil {
		return err
	}

	for _, node := range workflow.Nodes {
		if err := r.ValidateNodeConfig(node); err != nil {
			return err
		}
	}

	return nil
}
