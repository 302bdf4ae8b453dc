// Package platform provides a self-describing registry of the
// framework's modules, public operations, and features.
//
// The registry is built by Discover, which enumerates the framework's
// own capabilities, and can be serialized to JSON so agents and tools
// can query what the platform supports at runtime.
package platform
