// Package hcl provides the concrete HCL implementation of the route
// manifest Loader defined in the config package. It is responsible for file
// discovery, parsing, and HCL-to-model translation.
package hcl
