package helpers

import (
	"github.com/sirupsen/logrus"
)

// HandleError is for unrecoverable startup failures only; the poll loop
// never calls it.
func HandleError(err error) {
	if err != nil {
		logrus.Fatal(err)
	}
}
