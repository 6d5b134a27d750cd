package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIPrefix is where versioned routes are mounted
const APIPrefix = "/api/v1"

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// Group is a route table built ahead of the engine. Middleware added with
// Use applies to the group's routes and to every nested group.
type Group struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
	children   []*Group
}

// NewGroup returns an empty group mounted at prefix
func NewGroup(prefix string) *Group {
	return &Group{prefix: prefix}
}

func (g *Group) Use(middleware ...gin.HandlerFunc) *Group {
	g.middleware = append(g.middleware, middleware...)
	return g
}

func (g *Group) add(method, path string, handlers []gin.HandlerFunc) *Group {
	g.routes = append(g.routes, route{method: method, path: path, handlers: handlers})
	return g
}

func (g *Group) GET(path string, handlers ...gin.HandlerFunc) *Group {
	return g.add(http.MethodGet, path, handlers)
}

func (g *Group) POST(path string, handlers ...gin.HandlerFunc) *Group {
	return g.add(http.MethodPost, path, handlers)
}

func (g *Group) PUT(path string, handlers ...gin.HandlerFunc) *Group {
	return g.add(http.MethodPut, path, handlers)
}

func (g *Group) DELETE(path string, handlers ...gin.HandlerFunc) *Group {
	return g.add(http.MethodDelete, path, handlers)
}

// Nest adds a child group below g and returns it
func (g *Group) Nest(prefix string) *Group {
	child := NewGroup(prefix)
	g.children = append(g.children, child)
	return child
}

// Attach registers the group and its children on parent
func (g *Group) Attach(parent *gin.RouterGroup) {
	rg := parent.Group(g.prefix, g.middleware...)
	for _, r := range g.routes {
		rg.Handle(r.method, r.path, r.handlers...)
	}
	for _, child := range g.children {
		child.Attach(rg)
	}
}
