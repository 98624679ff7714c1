package integration_tests

import (
	"testing"

	"github.com/vk/hpsweep/internal/testutil"
)

// blobsProject lays out a project with the three-cluster dataset and the
// given configuration files under config/generated.
func blobsProject(t *testing.T, configs map[string]string) string {
	t.Helper()
	x, y := testutil.Clusters()
	px, py := testutil.ClusterProbes()

	files := map[string]string{
		"data/blobs/train.csv": testutil.CSV(x, y),
		"data/blobs/test.csv":  testutil.CSV(px, py),
	}
	for name, doc := range configs {
		files["config/generated/"+name] = doc
	}
	return testutil.NewProject(t, files)
}

func classicalConfig(modelType, compile string) string {
	return `{"dataset": {"id": "blobs"}, "model": {"type": "` + modelType + `", "hyperparameters": {"compile": ` + compile + `}}, "results": {}}`
}
