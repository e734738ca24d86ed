package auth

import (
	"testing"

	"github.com/BKHilton/Ember/testutil"
)

func TestLeafPackageImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.CoreImportForbidden, testutil.InfraImportForbidden, testutil.CommandImportForbidden),
		"auth must not depend on the service or its backends")
}
