// Package tree exposes a trial app session as a lazily expanded node
// hierarchy for a tree-view host.
package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

// Node is what a tree-view host drives. Children are loaded on demand and
// always complete in one call.
type Node interface {
	ID() string
	Label() string
	Description() string
	ContextValue() string
	Children(ctx context.Context) ([]Node, error)
	HasMoreChildren() bool
	Refresh(ctx context.Context) error
}

// URLOpener shows a URL to the user (external browser, HTTP redirect, ...)
type URLOpener interface {
	Open(ctx context.Context, url string) error
}

// URLOpenerFunc adapts a function to URLOpener
type URLOpenerFunc func(ctx context.Context, url string) error

func (f URLOpenerFunc) Open(ctx context.Context, url string) error {
	return f(ctx, url)
}

// View renders n and depth levels of descendants. Errors loading the
// children of a descendant are reported on that descendant's view instead
// of failing the whole render; only an error on n itself is returned.
func View(ctx context.Context, n Node, depth int) (models.TreeNodeView, error) {
	v := models.TreeNodeView{
		ID:              n.ID(),
		Label:           n.Label(),
		Description:     n.Description(),
		ContextValue:    n.ContextValue(),
		HasMoreChildren: n.HasMoreChildren(),
	}
	if depth <= 0 {
		return v, nil
	}

	children, err := n.Children(ctx)
	if err != nil {
		return v, err
	}

	v.Children = make([]models.TreeNodeView, 0, len(children))
	for _, child := range children {
		cv, err := View(ctx, child, depth-1)
		if err != nil {
			cv.Error = errorText(err)
		}
		v.Children = append(v.Children, cv)
	}
	return v, nil
}

func errorText(err error) string {
	if errors.Is(err, models.ErrUnsupportedOperation) {
		return models.ErrUnsupportedOperation.Error()
	}
	return err.Error()
}

func childID(parentID, contextValue string) string {
	return fmt.Sprintf("%s/%s", parentID, contextValue)
}
