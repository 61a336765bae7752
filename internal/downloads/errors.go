package downloads

import (
	"errors"
	"fmt"

	"github.com/alessio/shellescape"
)

var (
	ErrInvalidName    = errors.New("downloads: invalid download name")
	ErrUnknownRelease = errors.New("downloads: unknown release")
)

// FetchCommand is the command users run to fetch a missing download.
const FetchCommand = "mhcpool downloads fetch"

// MissingError reports a download file that is not present locally.
type MissingError struct {
	Name string
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("Missing downloadable file: %s. To download this data, run:\n\t%s\nin a shell.",
		shellescape.Quote(e.Path), e.Remediation())
}

// Remediation is the shell command that fetches the missing download.
func (e *MissingError) Remediation() string {
	return FetchCommand + " " + shellescape.Quote(e.Name)
}

// IsMissing reports whether err is a *MissingError.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}
