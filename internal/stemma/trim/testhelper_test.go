package trim_test

import (
	"testing"

	"gitlab.com/stemma-project/stemma/internal/testhelper"
)

func TestMain(m *testing.M) {
	testhelper.Run(m)
}
