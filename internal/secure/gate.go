package secure

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/tomaszkw/docmeter/internal/common"
)

// VerifyResult is the outcome of a password check. PageCount is populated
// only when the document opened successfully.
type VerifyResult struct {
	Valid     bool
	PageCount int
	Reason    string
}

// Gate verifies a password against an encrypted document before any
// decryption happens. Verification never materializes a decrypted copy,
// so a wrong guess costs no memory and yields a precise error instead of
// a confusing decryption failure.
type Gate struct {
	logger *slog.Logger
}

func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger}
}

func config(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.UserPW = password
	return conf
}

// IsEncrypted reports whether the document demands a password to open.
func (g *Gate) IsEncrypted(data []byte) bool {
	err := api.Validate(bytes.NewReader(data), config(""))
	return err != nil && isPasswordErr(err)
}

// Verify attempts to open the document with the supplied password. An
// authentication failure yields the recoverable "incorrect password"
// signal; any other failure (corrupt file, unsupported encryption) yields
// a generic reason.
func (g *Gate) Verify(data []byte, password string) VerifyResult {
	conf := config(password)
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		if isPasswordErr(err) {
			g.logger.Info("document password rejected")
			return VerifyResult{Reason: common.ErrPasswordIncorrect.Error()}
		}
		g.logger.Warn("document could not be opened", "error", err)
		return VerifyResult{Reason: "the document could not be opened"}
	}

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		g.logger.Warn("page count after verify failed", "error", err)
		return VerifyResult{Reason: "the document could not be opened"}
	}
	return VerifyResult{Valid: true, PageCount: n}
}

// Decrypt re-opens the document with the password and re-serializes it
// without encryption. Callers must verify first: decryption failure modes
// are less specific than verification's.
func (g *Gate) Decrypt(data []byte, password string) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &out, config(password)); err != nil {
		if isPasswordErr(err) {
			return nil, fmt.Errorf("%w: %v", common.ErrPasswordIncorrect, err)
		}
		return nil, fmt.Errorf("decrypt document: %w", err)
	}
	return out.Bytes(), nil
}

// isPasswordErr classifies an authentication-specific failure. pdfcpu
// reports these as opaque errors whose text names the password.
func isPasswordErr(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "password")
}
