// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing core model objects (agents, crews,
// tasks) and simulating the remote agent transport. These helpers are
// intentionally minimal and avoid adding third-party dependencies. They are
// not intended for production usage.
package testutil
