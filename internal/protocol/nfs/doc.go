// Package nfs holds the procedure dispatch tables shared by the NFSv3 and
// MOUNT wire handlers.
//
// NfsDispatchTable and MountDispatchTable map RPC procedure numbers to
// decode/handle/encode pipelines built on top of the request and response
// types defined in v3/handlers and mount/handlers. pkg/adapter/nfs looks up
// incoming procedure numbers in these tables and invokes the resulting
// nfsProcedureHandler or mountProcedureHandler.
//
// AuthContext carries the authentication data extracted from an RPC call
// (AUTH_UNIX credentials, client address, and a Go context for cancellation)
// through to every procedure handler.
//
// This package also defines the NFSv3 procedure numbers, status codes, and
// other RFC 1813 wire constants used across the v3 and mount subpackages.
package nfs
