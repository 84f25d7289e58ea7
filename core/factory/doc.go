// Package factory is a generic registry that turns a {type, conf} pair from
// configuration into a concrete implementation. It is used for directory
// sources, request log stores and metrics sinks.
//
//	reg := factory.NewRegistry[directory.Source]()
//	reg.Register("static", newStaticSource)
//	src, err := reg.Create(factory.ModuleConfig{Type: "static", Conf: raw})
package factory
