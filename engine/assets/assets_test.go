package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-shapes/engine/assets/loaders"
	"github.com/spaghettifunk/anima-shapes/engine/core"
)

func spirv(words ...uint32) []byte {
	out := binary.LittleEndian.AppendUint32(nil, loaders.SPIRVMagic)
	for _, w := range words {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

func writeShader(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newManager(t *testing.T, dir string) *AssetManager {
	t.Helper()
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { am.Shutdown() })
	return am
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "shapes"+VertexShaderSuffix, spirv(1, 2))
	writeShader(t, dir, "shapes"+FragmentShaderSuffix, spirv(3))
	writeShader(t, dir, "readme.txt", []byte("not a shader"))

	am := newManager(t, dir)
	if am.Count() != 2 {
		t.Fatalf("%d shaders indexed, want 2", am.Count())
	}

	vert, frag, err := am.LoadShader("shapes")
	if err != nil {
		t.Fatal(err)
	}
	if len(vert) != 12 || len(frag) != 8 {
		t.Fatalf("stage sizes = %d, %d", len(vert), len(frag))
	}
	if binary.LittleEndian.Uint32(frag[4:]) != 3 {
		t.Fatal("fragment stage holds the wrong bytes")
	}
}

func TestLoadShaderErrors(t *testing.T) {
	dir := t.TempDir()
	writeShader(t, dir, "half"+VertexShaderSuffix, spirv())
	writeShader(t, dir, "bad"+VertexShaderSuffix, []byte{1, 2, 3, 4})
	writeShader(t, dir, "bad"+FragmentShaderSuffix, spirv())
	writeShader(t, dir, "ragged"+VertexShaderSuffix, append(spirv(), 9))
	writeShader(t, dir, "ragged"+FragmentShaderSuffix, spirv())

	am := newManager(t, dir)
	for _, name := range []string{"half", "bad", "ragged", "missing"} {
		if _, _, err := am.LoadShader(name); err == nil {
			t.Fatalf("shader %s loaded", name)
		}
	}
}

func TestShaderChangeFiresEvent(t *testing.T) {
	if !core.EventSystemInitialize() {
		t.Fatal("event system already initialized")
	}
	defer core.EventSystemShutdown()

	changed := make(chan string, 16)
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, func(ctx core.EventContext) {
		changed <- ctx.Data.(*core.AssetEvent).Path
	})

	dir := t.TempDir()
	newManager(t, dir)

	target := filepath.Join(dir, "shapes"+FragmentShaderSuffix)
	writeShader(t, dir, "notes.md", []byte("ignored"))
	writeShader(t, dir, "shapes"+FragmentShaderSuffix, spirv(7))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		core.ProcessEvents()
		select {
		case path := <-changed:
			if path != target {
				t.Fatalf("event for %s, want %s", path, target)
			}
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatal("no asset changed event for the rewritten shader")
}

func TestShutdownTwice(t *testing.T) {
	am, err := NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatal(err)
	}
}
