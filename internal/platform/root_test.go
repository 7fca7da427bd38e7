package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/veneer/pkg/adapters/fs"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   store/ (.veneer)
	//     notes/
	//       deep/
	//     project/ (veneer.yaml)
	//       src/
	//   configured/ (veneer.yaml)
	//   empty/
	baseDir := t.TempDir()
	storeDir := filepath.Join(baseDir, "store")
	deepDir := filepath.Join(storeDir, "notes", "deep")
	projectDir := filepath.Join(storeDir, "project")
	srcDir := filepath.Join(projectDir, "src")
	configuredDir := filepath.Join(baseDir, "configured")
	emptyDir := filepath.Join(baseDir, "empty")

	for _, dir := range []string{deepDir, srcDir, configuredDir, emptyDir} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	require.NoError(t, os.Mkdir(filepath.Join(storeDir, fs.DefaultSystemDir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configuredDir, ConfigFileName), []byte("adapter: memory\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ConfigFileName), []byte("location: ../\n"), 0644))

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   error
	}{
		{name: "System Dir At Start", startPath: storeDir, wantRoot: storeDir},
		{name: "System Dir Above", startPath: deepDir, wantRoot: storeDir},
		{name: "Config File At Start", startPath: configuredDir, wantRoot: configuredDir},
		{name: "Nearest Indicator Wins", startPath: srcDir, wantRoot: projectDir},
		{name: "No Root Found", startPath: emptyDir, wantErr: ErrRootNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.wantRoot), filepath.Clean(got))
		})
	}

	t.Run("A Config Directory Is Not An Indicator", func(t *testing.T) {
		dir := filepath.Join(emptyDir, "odd")
		require.NoError(t, os.MkdirAll(filepath.Join(dir, ConfigFileName), 0755))
		_, err := FindRoot(dir)
		assert.ErrorIs(t, err, ErrRootNotFound)
	})
}
