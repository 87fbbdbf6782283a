package router

import (
	"fmt"
	"net/http"
)

// CollectionDefinition describes a read-only collection endpoint
type CollectionDefinition struct {
	// Name is the plural collection name, e.g. "pages"
	Name string
	// BasePath defaults to "/" + Name
	BasePath string
	// IDPattern constrains the id segment; defaults to digits
	IDPattern string
}

// CollectionHandlers contains the two read handlers of a collection
type CollectionHandlers struct {
	List   http.HandlerFunc
	Detail http.HandlerFunc
}

// ListRouteName returns the name given to a collection's listing route
func ListRouteName(collection string) string {
	return collection + ":list"
}

// DetailRouteName returns the name given to a collection's detail route
func DetailRouteName(collection string) string {
	return collection + ":detail"
}

// RegisterCollection registers "<base>/" and "<base>/{id}/" routes. Both
// keep the trailing slash the API has always used.
func (r *Router) RegisterCollection(def CollectionDefinition, handlers CollectionHandlers) error {
	if def.Name == "" {
		return fmt.Errorf("collection name is required")
	}
	if handlers.List == nil || handlers.Detail == nil {
		return fmt.Errorf("collection %s: list and detail handlers are required", def.Name)
	}

	base := def.BasePath
	if base == "" {
		base = "/" + def.Name
	}
	idPattern := def.IDPattern
	if idPattern == "" {
		idPattern = "[0-9]+"
	}

	r.Get(base+"/", handlers.List).
		Named(ListRouteName(def.Name)).
		ForCollection(def.Name, OpList)
	r.Get(fmt.Sprintf("%s/{id:%s}/", base, idPattern), handlers.Detail).
		Named(DetailRouteName(def.Name)).
		ForCollection(def.Name, OpDetail)
	return nil
}
