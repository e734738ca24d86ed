package workers

import (
	"testing"

	"github.com/BKHilton/Ember/testutil"
)

func TestWorkersReachStorageThroughTheService(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InfraImportForbidden, testutil.CommandImportForbidden),
		"jobs must go through internal/core")
}
