//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/win_switch/internal/activity"
	"github.com/eliteGoblin/focusd/win_switch/internal/config"
	"github.com/eliteGoblin/focusd/win_switch/internal/daemon"
	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
	"github.com/eliteGoblin/focusd/win_switch/internal/infra"
	"github.com/eliteGoblin/focusd/win_switch/internal/usecase"
	"github.com/eliteGoblin/focusd/win_switch/test/fixtures"
)

var _ = Describe("Scheduler", func() {
	var (
		ctx        context.Context
		tmpDir     string
		configPath string
		logPath    string
		desktop    *fixtures.FakeDesktop
		sleeper    *fixtures.SleepRecorder
		monitor    *activity.Monitor
		backends   []domain.ActivationBackend
		idleWindow time.Duration
		settings   map[string]any
	)

	writeConfig := func() {
		data, err := json.Marshal(settings)
		Expect(err).NotTo(HaveOccurred())
		Expect(os.WriteFile(configPath, data, 0644)).To(Succeed())
	}

	readLog := func() []string {
		data, err := os.ReadFile(logPath)
		if os.IsNotExist(err) {
			return nil
		}
		Expect(err).NotTo(HaveOccurred())
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}

	newScheduler := func() *daemon.Scheduler {
		logger := zap.NewNop()
		fs := infra.NewFileSystemManagerWithHome(tmpDir)
		store := fixtures.TunedStore{
			ConfigStore: config.NewStore(configPath, config.Overrides{}, fs, logger),
			IdleWindow:  idleWindow,
		}

		monitor = activity.NewMonitor(activity.MonitorConfig{
			PollInterval:     5 * time.Millisecond,
			TapRetryInterval: time.Minute,
		}, desktop, desktop, logger)
		Expect(monitor.Start(ctx)).To(Succeed())

		activator := usecase.NewActivator(desktop, backends, desktop, logger)

		return daemon.NewScheduler(
			daemon.SchedulerConfig{},
			store,
			infra.NewWindowSource(desktop),
			monitor,
			activator,
			func(path string) domain.SwitchLogger { return infra.NewFileSwitchLogger(path, fs) },
			logger,
		).WithSleep(sleeper.Sleep).WithJitter(daemon.NewJitter(7))
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		tmpDir, err = os.MkdirTemp("", "winswitch-integration-*")
		Expect(err).NotTo(HaveOccurred())

		configPath = filepath.Join(tmpDir, "config.json")
		logPath = filepath.Join(tmpDir, "logs", "switch_log.txt")
		desktop = fixtures.NewFakeDesktop()
		sleeper = &fixtures.SleepRecorder{}
		backends = []domain.ActivationBackend{desktop}
		idleWindow = 30 * time.Millisecond
		settings = map[string]any{
			"ignored_keywords":        []string{"Dock"},
			"enable_logging":          true,
			"background_mode":         true,
			"logfilepath":             logPath,
			"min_delay":               5,
			"max_delay":               5,
			"switch_back":             false,
			"inter_cycle_min_seconds": 20,
			"inter_cycle_max_seconds": 20,
		}
		writeConfig()
	})

	AfterEach(func() {
		if monitor != nil {
			_ = monitor.Stop()
		}
		os.RemoveAll(tmpDir)
	})

	Describe("RunCycle", func() {
		Context("when the user is away", func() {
			It("should activate every filtered window once and log each switch", func() {
				desktop.SetWindows(
					fixtures.Window("Safari"),
					fixtures.Window("Dock"),
					fixtures.Window("Safari"),
					fixtures.Window("Terminal"),
				)
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(Equal([]string{"Safari", "Terminal"}))
				lines := readLog()
				Expect(lines).To(HaveLen(2))
				Expect(lines[0]).To(HaveSuffix(" - Switched to: Safari"))
				Expect(lines[1]).To(HaveSuffix(" - Switched to: Terminal"))
				Expect(sleeper.Sleeps()).To(Equal([]time.Duration{5 * time.Second, 5 * time.Second, 20 * time.Second}))
			})

			It("should not reactivate the last window at the start of the next cycle", func() {
				desktop.SetWindows(fixtures.Window("Safari"))
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())
				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(Equal([]string{"Safari"}))
			})
		})

		Context("when the user is moving the pointer", func() {
			It("should skip every window without activating", func() {
				desktop.SetWindows(fixtures.Window("Safari"), fixtures.Window("Terminal"))
				desktop.SetBusy(true)
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(BeEmpty())
				Expect(readLog()).To(BeEmpty())
			})
		})

		Context("when the user types during the quiet period", func() {
			It("should skip the window", func() {
				idleWindow = 2 * time.Second
				desktop.SetWindows(fixtures.Window("Safari"))
				scheduler := newScheduler()

				go func() {
					defer GinkgoRecover()
					time.Sleep(100 * time.Millisecond)
					desktop.Press()
				}()

				start := time.Now()
				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(BeEmpty())
				Expect(time.Since(start)).To(BeNumerically("<", 1500*time.Millisecond))
				Expect(monitor.State().LastKeystroke.IsZero()).To(BeFalse())
			})
		})

		Context("when an application quit after enumeration", func() {
			It("should skip it without a cooldown and move on", func() {
				desktop.SetWindows(fixtures.Window("Mail"), fixtures.Window("Notes"))
				desktop.Quit("Mail")
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(Equal([]string{"Notes"}))
				Expect(readLog()).To(HaveLen(1))
				Expect(sleeper.Sleeps()).To(Equal([]time.Duration{5 * time.Second, 20 * time.Second}))
			})
		})

		Context("when outside every allowed timeslot", func() {
			It("should abandon the cycle and sleep", func() {
				settings["timeslotsofday"] = []string{"09:00-10:00"}
				settings["timeslot_sleep_seconds"] = 120
				writeConfig()
				desktop.SetWindows(fixtures.Window("Safari"))
				scheduler := newScheduler().WithClock(func() time.Time {
					return time.Date(2024, 5, 1, 22, 0, 0, 0, time.Local)
				})

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(BeEmpty())
				Expect(sleeper.Sleeps()).To(Equal([]time.Duration{120 * time.Second}))
			})
		})

		Context("when the config file changes between cycles", func() {
			It("should apply the new ignore list on the next cycle", func() {
				desktop.SetWindows(fixtures.Window("Safari"), fixtures.Window("Terminal"), fixtures.Window("Notes"))
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				settings["ignored_keywords"] = []string{"Safari"}
				writeConfig()
				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(Equal([]string{"Safari", "Terminal", "Notes", "Terminal", "Notes"}))
			})
		})

		Context("when logging is skipped", func() {
			It("should not create the switch log", func() {
				settings["enable_logging"] = false
				writeConfig()
				desktop.SetWindows(fixtures.Window("Safari"))
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(Equal([]string{"Safari"}))
				_, err := os.Stat(logPath)
				Expect(os.IsNotExist(err)).To(BeTrue())
			})
		})
	})

	Describe("Activation backends", func() {
		Context("when the primary backend fails", func() {
			It("should fall back to the next backend", func() {
				backends = []domain.ActivationBackend{fixtures.BrokenBackend{}, desktop}
				desktop.SetWindows(fixtures.Window("Safari"))
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(Equal([]string{"Safari"}))
				Expect(readLog()).To(HaveLen(1))
			})
		})

		Context("when every backend fails", func() {
			It("should record nothing in the switch log", func() {
				backends = []domain.ActivationBackend{fixtures.BrokenBackend{}}
				desktop.SetWindows(fixtures.Window("Safari"))
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(scheduler.LastActivated()).To(Equal("Safari"))
				Expect(readLog()).To(BeEmpty())
			})
		})

		Context("when switch back is enabled", func() {
			It("should return focus to the previous window", func() {
				settings["switch_back"] = true
				settings["switch_back_delay_ms"] = 0
				writeConfig()
				desktop.SetWindows(fixtures.Window("Safari"))
				desktop.Focus("Editor")
				scheduler := newScheduler()

				Expect(scheduler.RunCycle(ctx)).To(Succeed())

				Expect(desktop.Activated()).To(Equal([]string{"Safari"}))
				Expect(desktop.Focused()).To(Equal("Editor"))
			})
		})
	})
})
