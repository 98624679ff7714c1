package app

import (
	"github.com/vk/hpsweep/internal/registry"
	"github.com/vk/hpsweep/modules/naivebayes"
	"github.com/vk/hpsweep/modules/neighbors"
	"github.com/vk/hpsweep/modules/sequential"
	"github.com/vk/hpsweep/modules/svm"
	"github.com/vk/hpsweep/modules/tree"
)

// coreModules is the definitive list of all estimator modules that are
// compiled into the hpsweep binary.
var coreModules = []registry.Module{
	&sequential.Module{},
	&svm.Module{},
	&neighbors.Module{},
	&naivebayes.Module{},
	&tree.Module{},
}
