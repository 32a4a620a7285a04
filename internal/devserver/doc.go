// Package devserver assembles the development server: the API proxy rules,
// the page shell with the terminal mounted, upstream health checks and the
// introspection endpoints, all behind one gin engine.
package devserver
