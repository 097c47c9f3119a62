package discovery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/streambinder/youterm/entity"
)

// ErrUnavailable is matched by UnavailableError
var ErrUnavailable = errors.New("discovery unavailable")

// UnavailableError is returned when every sub-strategy of a
// discovery failed; Causes holds the failure of each of them
type UnavailableError struct {
	Query    string
	Strategy entity.Strategy
	Causes   []error
}

func (err *UnavailableError) Error() string {
	causes := make([]string, 0, len(err.Causes))
	for _, cause := range err.Causes {
		causes = append(causes, cause.Error())
	}
	message := fmt.Sprintf("%s: %s discovery of %q", ErrUnavailable, err.Strategy, err.Query)
	if len(causes) > 0 {
		message += ": " + strings.Join(causes, "; ")
	}
	return message
}

func (err *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func (err *UnavailableError) Unwrap() []error {
	return err.Causes
}
