package nfs

import "github.com/tyonekura/nfsserver/internal/logger"

// safeAdd performs checked addition of two uint64 values.
// Returns the sum and a boolean indicating whether overflow occurred.
func safeAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	overflow := sum < a // If sum wrapped around, it will be less than a
	return sum, overflow
}

// encodable is satisfied by any wire response type produced by the
// v3/handlers and mount/handlers packages.
type encodable interface {
	Encode() ([]byte, error)
}

// handleRequest decodes an RPC argument, invokes the procedure handler, and
// encodes the result, collapsing decode/handle/encode failures into the
// caller-supplied error response.
func handleRequest[Req any, Resp encodable](
	data []byte,
	decode func([]byte) (Req, error),
	handle func(Req) (Resp, error),
	errorStatus uint32,
	makeErrorResp func(uint32) Resp,
) ([]byte, error) {
	req, err := decode(data)
	if err != nil {
		logger.Debug("Error decoding request: %v", err)
		return makeErrorResp(errorStatus).Encode()
	}

	resp, err := handle(req)
	if err != nil {
		logger.Debug("Handler error: %v", err)
		return makeErrorResp(errorStatus).Encode()
	}

	encoded, err := resp.Encode()
	if err != nil {
		logger.Debug("Error encoding response: %v", err)
		return makeErrorResp(errorStatus).Encode()
	}

	return encoded, nil
}
