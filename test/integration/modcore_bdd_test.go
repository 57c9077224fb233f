//go:build integration

package integration

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/hexforge/modcore/internal/discovery"
	"github.com/hexforge/modcore/internal/hooks"
	"github.com/hexforge/modcore/internal/keybinds"
	"github.com/hexforge/modcore/internal/lifecycle"
	"github.com/hexforge/modcore/internal/options"
	"github.com/hexforge/modcore/internal/settings"
)

const audioDescriptor = `
name: audio-tweaks
version: 1.0.0
options:
  - name: volume
    kind: number
    default: 50
    min: 0
    max: 100
    step: 5
keybinds:
  - name: toggle-mute
    key: F5
`

var _ = Describe("Mod Host", func() {
	var (
		tmpDir   string
		registry *hooks.Registry
		engine   *settings.Engine
		input    *keybinds.Dispatcher
		manager  *lifecycle.Manager
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "modcore-integration-*")
		Expect(err).NotTo(HaveOccurred())

		logger := zap.NewNop()
		registry = hooks.NewRegistry(logger)
		engine = settings.NewEngine(filepath.Join(tmpDir, "settings"), logger)
		input = keybinds.NewDispatcher(logger)
		manager = lifecycle.NewManager(registry, engine, input, logger)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	discoverAudioMod := func() *lifecycle.Mod {
		modsDir := filepath.Join(tmpDir, "mods", "audio-tweaks")
		Expect(os.MkdirAll(modsDir, 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(modsDir, "mod.yaml"), []byte(audioDescriptor), 0o644)).To(Succeed())

		result, err := discovery.NewScanner(filepath.Join(tmpDir, "mods"), zap.NewNop()).Scan()
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Failures).To(BeEmpty())
		Expect(result.Mods).To(HaveLen(1))
		return result.Mods[0]
	}

	Describe("Discovery to dispatch", func() {
		It("routes a hooked native call through a discovered mod", func() {
			mod := discoverAudioMod()
			mod.Hooks = []lifecycle.HookSpec{{
				Identifier: "Engine.PlaySound",
				Phase:      hooks.PhasePre,
				Callback: func(c *hooks.Call) error {
					c.ShortCircuit("muted")
					return nil
				},
			}}
			Expect(manager.Add(mod)).To(Succeed())
			Expect(manager.Enable("audio-tweaks")).To(Succeed())

			dispatcher := hooks.NewDispatcher(registry, nil, zap.NewNop())
			nativeRan := false
			ret := dispatcher.Dispatch("Engine.PlaySound", nil, func(map[string]any) any {
				nativeRan = true
				return "played"
			})

			Expect(ret).To(Equal("muted"))
			Expect(nativeRan).To(BeFalse())
		})

		It("stops routing once the mod is disabled", func() {
			mod := discoverAudioMod()
			fired := false
			mod.Hooks = []lifecycle.HookSpec{{
				Identifier: "Engine.PlaySound",
				Phase:      hooks.PhasePre,
				Callback: func(c *hooks.Call) error {
					fired = true
					return nil
				},
			}}
			Expect(manager.Add(mod)).To(Succeed())
			Expect(manager.Enable("audio-tweaks")).To(Succeed())
			Expect(manager.Disable("audio-tweaks")).To(Succeed())

			dispatcher := hooks.NewDispatcher(registry, nil, zap.NewNop())
			dispatcher.Dispatch("Engine.PlaySound", nil, nil)
			Expect(fired).To(BeFalse())
		})
	})

	Describe("Character switching", func() {
		Context("when two characters use the same mod", func() {
			It("keeps their option values isolated across switches", func() {
				mod := discoverAudioMod()
				Expect(manager.Add(mod)).To(Succeed())
				Expect(manager.Enable("audio-tweaks")).To(Succeed())

				// Alice tunes her volume and saves.
				Expect(manager.SetActiveCharacter("alice")).To(Succeed())
				Expect(mod.Options.Set("volume", options.NumberValue(90))).To(Succeed())
				Expect(manager.SaveActive()).To(Succeed())

				// Bob starts fresh on defaults.
				Expect(manager.SetActiveCharacter("bob")).To(Succeed())
				v, err := mod.Options.Get("volume")
				Expect(err).NotTo(HaveOccurred())
				Expect(v.Number).To(Equal(50.0))

				Expect(mod.Options.Set("volume", options.NumberValue(10))).To(Succeed())
				Expect(manager.SaveActive()).To(Succeed())

				// Switching back restores Alice's exact values.
				Expect(manager.SetActiveCharacter("alice")).To(Succeed())
				v, err = mod.Options.Get("volume")
				Expect(err).NotTo(HaveOccurred())
				Expect(v.Number).To(Equal(90.0))
			})

			It("persists rebound keys per character", func() {
				mod := discoverAudioMod()
				Expect(manager.Add(mod)).To(Succeed())
				Expect(manager.Enable("audio-tweaks")).To(Succeed())

				Expect(manager.SetActiveCharacter("alice")).To(Succeed())
				bind, ok := mod.Keybinds.Get("toggle-mute")
				Expect(ok).To(BeTrue())
				bind.Rebind("F9")
				Expect(manager.SaveActive()).To(Succeed())

				Expect(manager.SetActiveCharacter("bob")).To(Succeed())
				Expect(bind.Key()).To(Equal("F5"))

				Expect(manager.SetActiveCharacter("alice")).To(Succeed())
				Expect(bind.Key()).To(Equal("F9"))
			})
		})

		Context("when a mod enables mid-session", func() {
			It("loads the active character's saved values on enable", func() {
				mod := discoverAudioMod()
				Expect(manager.Add(mod)).To(Succeed())

				// Seed a saved document for alice from a previous session.
				seed := options.NewStore("audio-tweaks", zap.NewNop())
				Expect(seed.Register(options.NewNumber("volume", 50, 0, 100, 5))).To(Succeed())
				engine.Bind("audio-tweaks", seed, nil)
				Expect(seed.Set("volume", options.NumberValue(75))).To(Succeed())
				Expect(engine.Save("alice")).To(Succeed())
				engine.Unbind("audio-tweaks")

				Expect(manager.SetActiveCharacter("alice")).To(Succeed())
				Expect(manager.Enable("audio-tweaks")).To(Succeed())

				v, err := mod.Options.Get("volume")
				Expect(err).NotTo(HaveOccurred())
				Expect(v.Number).To(Equal(75.0))
			})
		})
	})

	Describe("Settings documents on disk", func() {
		It("survives a full save, restart and reload cycle", func() {
			mod := discoverAudioMod()
			Expect(manager.Add(mod)).To(Succeed())
			Expect(manager.Enable("audio-tweaks")).To(Succeed())

			Expect(manager.SetActiveCharacter("alice")).To(Succeed())
			Expect(mod.Options.Set("volume", options.NumberValue(65))).To(Succeed())
			Expect(manager.SaveActive()).To(Succeed())

			// Simulate a process restart: brand-new collaborators over the
			// same settings directory.
			logger := zap.NewNop()
			registry2 := hooks.NewRegistry(logger)
			engine2 := settings.NewEngine(filepath.Join(tmpDir, "settings"), logger)
			manager2 := lifecycle.NewManager(registry2, engine2, keybinds.NewDispatcher(logger), logger)

			mod2 := discoverAudioMod()
			Expect(manager2.Add(mod2)).To(Succeed())
			Expect(manager2.SetActiveCharacter("alice")).To(Succeed())
			Expect(manager2.Enable("audio-tweaks")).To(Succeed())

			v, err := mod2.Options.Get("volume")
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Number).To(Equal(65.0))
		})
	})
})
