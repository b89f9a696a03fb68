package reserve

import "github.com/holiman/uint256"

// Oracle reports the total backing held across liquid holdings and deployed
// holdings, net of amounts earmarked for deposits that have not been credited.
// Implementations must answer synchronously and must never substitute a
// default when the figure cannot be computed.
type Oracle interface {
	TotalBacking() (*uint256.Int, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func() (*uint256.Int, error)

// TotalBacking implements Oracle.
func (f OracleFunc) TotalBacking() (*uint256.Int, error) {
	return f()
}
