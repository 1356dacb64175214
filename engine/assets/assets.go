package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/anima-shapes/engine/assets/loaders"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"golang.org/x/sync/errgroup"
)

const (
	VertexShaderSuffix   = ".vert.spv"
	FragmentShaderSuffix = ".frag.spv"
)

type AssetInfo struct {
	Path       string
	LastLoaded time.Time
}

// AssetManager indexes the compiled shaders of a directory tree and fires
// EVENT_CODE_ASSET_CHANGED whenever one of them is rewritten.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	shaders loaders.Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	started  bool
	isClosed bool
}

func NewAssetManager() (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		err = fmt.Errorf("failed to create asset watcher: %w", err)
		core.LogError(err.Error())
		return nil, err
	}

	return &AssetManager{
		assets:   make(map[string]AssetInfo),
		shaders:  &loaders.ShaderLoader{},
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Initialize indexes shaderDir and starts watching it.
func (am *AssetManager) Initialize(shaderDir string) error {
	am.root = shaderDir
	if err := am.addRecursive(shaderDir); err != nil {
		err = fmt.Errorf("failed to watch %s: %w", shaderDir, err)
		core.LogError(err.Error())
		return err
	}
	am.started = true
	go am.start()

	core.LogInfo("asset manager watching %s (%d shaders)", shaderDir, am.Count())
	return nil
}

// Count returns how many shader files are indexed.
func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// LoadShader reads name.vert.spv and name.frag.spv from the shader directory
// concurrently.
func (am *AssetManager) LoadShader(name string) ([]byte, []byte, error) {
	paths := [2]string{
		filepath.Join(am.root, name+VertexShaderSuffix),
		filepath.Join(am.root, name+FragmentShaderSuffix),
	}
	var stages [2]*loaders.Resource

	var g errgroup.Group
	for i := range paths {
		g.Go(func() error {
			res, err := am.shaders.Load(paths[i])
			if err != nil {
				return err
			}
			stages[i] = res
			am.touch(paths[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		err = fmt.Errorf("failed to load shader %s: %w", name, err)
		core.LogError(err.Error())
		return nil, nil, err
	}

	core.LogDebug("shader %s loaded (%d + %d bytes)", name, stages[0].DataSize, stages[1].DataSize)
	return stages[0].Data, stages[1].Data, nil
}

// Shutdown stops the watcher goroutine and releases the watcher.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	if am.started {
		<-am.stopped
		return nil
	}
	return am.fsnotify.Close()
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.isClosed {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					am.watchRecursive(e.Name)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if am.handleFileEvent(e.Name) {
					core.LogDebug("asset changed: %s", e.Name)
					core.EventFire(core.EventContext{
						Type: core.EVENT_CODE_ASSET_CHANGED,
						Data: &core.AssetEvent{Path: e.Name},
					})
				}
			}
			// a removed path can't be stat'ed, drop it from both lists
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
				am.fsnotify.Remove(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under path to the watch list and
// indexes the shaders found on the way.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// handleFileEvent indexes path and reports whether it is a shader.
func (am *AssetManager) handleFileEvent(path string) bool {
	if !isShader(path) {
		return false
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if _, ok := am.assets[path]; !ok {
		am.assets[path] = AssetInfo{Path: path}
	}
	return true
}

func (am *AssetManager) touch(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[path] = AssetInfo{Path: path, LastLoaded: time.Now()}
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
}

func isShader(path string) bool {
	return strings.HasSuffix(path, VertexShaderSuffix) || strings.HasSuffix(path, FragmentShaderSuffix)
}
