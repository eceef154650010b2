// Package testutil provides shared helpers for tests across the
// module: bounded test contexts, JSON fixtures, and polling
// assertions.
//
// The mocks subpackage holds scripted implementations of the external
// collaborator interfaces (search backends, embedding backends,
// synthesizers) so pipeline tests can run without network access.
package testutil
