package framevk

import (
	"context"
	"sync/atomic"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

// PlatformOptions configures instance and device creation.
type PlatformOptions struct {
	AppName    string
	Validation bool
	// InstanceExtensions are required by the windowing layer. Missing ones only produce a warning.
	InstanceExtensions []string
	Diagnostics        DiagnosticsFunc
	Log                *slog.Logger
}

// Platform owns the instance, the optional surface, the logical device and its queues.
type Platform struct {
	log *slog.Logger

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	sink          *diagnosticSink
	surface       vk.Surface

	gpu    vk.PhysicalDevice
	choice PhysicalDeviceChoice
	device vk.Device

	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	gpuProperties    vk.PhysicalDeviceProperties
	memoryProperties vk.PhysicalDeviceMemoryProperties
}

// NewPlatform creates a platform presenting to the window's surface.
func NewPlatform(opts PlatformOptions, window Window) (*Platform, error) {
	return newPlatform(opts, window)
}

// NewHeadlessPlatform creates a platform without a surface. Only the graphics queue is available.
func NewHeadlessPlatform(opts PlatformOptions) (*Platform, error) {
	return newPlatform(opts, nil)
}

func newPlatform(opts PlatformOptions, window Window) (p *Platform, err error) {
	log := opts.Log
	if log == nil {
		log = discardLogger()
	}
	p = &Platform{log: log, surface: vk.NullSurface, debugCallback: vk.NullDebugReportCallback}
	defer func() {
		if err != nil {
			p.Destroy()
			p = nil
		}
	}()

	if err := p.createInstance(opts); err != nil {
		return p, err
	}

	if window != nil {
		surface, err := window.CreateSurface(p.instance)
		if err != nil {
			return p, withClass(err, ErrInitialization, "create window surface")
		}
		p.surface = surface
	}

	var required []string
	if p.surface != vk.NullSurface {
		required = []string{SwapchainExtensionName}
	}
	choice, err := SelectDevice(p.instance, p.surface, required, log)
	if err != nil {
		return p, err
	}
	p.choice = choice
	p.gpu = choice.Device
	vk.GetPhysicalDeviceProperties(p.gpu, &p.gpuProperties)
	p.gpuProperties.Deref()
	p.gpuProperties.Limits.Deref()
	vk.GetPhysicalDeviceMemoryProperties(p.gpu, &p.memoryProperties)
	p.memoryProperties.Deref()

	return p, p.createDevice(opts, required)
}

func (p *Platform) createInstance(opts PlatformOptions) error {
	available, err := InstanceExtensions()
	if err != nil {
		return err
	}
	exts := ExtensionSet{Required: opts.InstanceExtensions, Actual: available}
	if opts.Validation {
		exts.Wanted = []string{DebugReportExtension}
	}
	if missing := exts.Missing(); len(missing) > 0 {
		p.log.Warn("missing required instance extensions", slog.Any("extensions", missing))
	}
	enabled := exts.Enabled()
	p.log.Info("enabling instance extensions", slog.Int("count", len(enabled)))

	availableLayers, err := ValidationLayers()
	if err != nil {
		return err
	}
	layers, err := selectLayers(availableLayers, opts.Validation)
	if err != nil {
		return err
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(DefaultAPIVersion),
			ApplicationVersion: uint32(DefaultAppVersion),
			PApplicationName:   safeString(opts.AppName),
			PEngineName:        "framevk\x00",
		},
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: enabled,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if err := newError(ret, ErrInitialization, "vkCreateInstance"); err != nil {
		return err
	}
	p.instance = instance
	vk.InitInstance(instance)

	if opts.Validation && contains(enabled, DebugReportExtension) {
		flags := vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit
		if p.log.Enabled(context.Background(), slog.LevelDebug) {
			flags |= vk.DebugReportInformationBit | vk.DebugReportDebugBit
		}
		p.sink = &diagnosticSink{log: p.log, fn: opts.Diagnostics}
		activeSink.Store(p.sink)
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(flags),
			PfnCallback: dbgCallbackFunc,
		}, nil, &p.debugCallback)
		if err := newError(ret, ErrInitialization, "vkCreateDebugReportCallbackEXT"); err != nil {
			return err
		}
		p.log.Info("debug report callback enabled")
	}
	return nil
}

func (p *Platform) createDevice(opts PlatformOptions, extensions []string) error {
	queues := QueueFamilyIndices{
		Graphics:    p.choice.Graphics,
		Present:     p.choice.Present,
		HasGraphics: true,
		HasPresent:  p.surface != vk.NullSurface,
	}
	queueInfos := queues.createInfos()
	enabled := safeStrings(extensions)

	var layers []string
	if opts.Validation {
		layers = []string{safeString(ValidationLayerName)}
	}

	var device vk.Device
	ret := vk.CreateDevice(p.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: enabled,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &device)
	if err := newError(ret, ErrInitialization, "vkCreateDevice"); err != nil {
		return err
	}
	p.device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, p.choice.Graphics, 0, &queue)
	p.graphicsQueue = queue
	p.presentQueue = queue
	if queues.HasPresent && p.choice.Present != p.choice.Graphics {
		var presentQueue vk.Queue
		vk.GetDeviceQueue(device, p.choice.Present, 0, &presentQueue)
		p.presentQueue = presentQueue
	}
	return nil
}

func (p *Platform) Instance() vk.Instance { return p.instance }
func (p *Platform) Surface() vk.Surface { return p.surface }
func (p *Platform) PhysicalDevice() vk.PhysicalDevice { return p.gpu }
func (p *Platform) Device() vk.Device { return p.device }
func (p *Platform) GraphicsQueue() vk.Queue { return p.graphicsQueue }
func (p *Platform) PresentQueue() vk.Queue { return p.presentQueue }
func (p *Platform) GraphicsQueueFamilyIndex() uint32 { return p.choice.Graphics }
func (p *Platform) PresentQueueFamilyIndex() uint32 { return p.choice.Present }
func (p *Platform) Choice() PhysicalDeviceChoice { return p.choice }
func (p *Platform) Properties() vk.PhysicalDeviceProperties { return p.gpuProperties }

// MemoryProperties gets the memory heaps and types of the selected physical device.
func (p *Platform) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return p.memoryProperties
}

// HasSeparatePresentQueue is true when presentation uses a different family than graphics.
func (p *Platform) HasSeparatePresentQueue() bool {
	return p.surface != vk.NullSurface && p.choice.Present != p.choice.Graphics
}

// Destroy releases whatever was created. Every resource built on the device must be gone already.
func (p *Platform) Destroy() {
	if p.device != nil {
		warnIdle(p.log, vk.DeviceWaitIdle(p.device), "platform destroy")
		vk.DestroyDevice(p.device, nil)
		p.device = nil
	}
	if p.surface != vk.NullSurface {
		vk.DestroySurface(p.instance, p.surface, nil)
		p.surface = vk.NullSurface
	}
	if p.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(p.instance, p.debugCallback, nil)
		p.debugCallback = vk.NullDebugReportCallback
	}
	if p.sink != nil {
		activeSink.CompareAndSwap(p.sink, nil)
		p.sink = nil
	}
	if p.instance != nil {
		vk.DestroyInstance(p.instance, nil)
		p.instance = nil
	}
}

// diagnosticSink routes validation messages to the logger and the user callback.
type diagnosticSink struct {
	log *slog.Logger
	fn  DiagnosticsFunc
}

var activeSink atomic.Pointer[diagnosticSink]

func (s *diagnosticSink) report(severity Severity, category string, code int32, message string) {
	attrs := []slog.Attr{slog.String("category", category), slog.Int("code", int(code))}
	switch severity {
	case SeverityError:
		s.log.LogAttrs(context.Background(), slog.LevelError, message, attrs...)
	case SeverityWarning, SeverityPerformance:
		s.log.LogAttrs(context.Background(), slog.LevelWarn, message, attrs...)
	case SeverityInfo:
		s.log.LogAttrs(context.Background(), slog.LevelInfo, message, attrs...)
	default:
		s.log.LogAttrs(context.Background(), slog.LevelDebug, message, attrs...)
	}
	if s.fn != nil {
		s.fn(severity, category, message)
	}
}

func severityOf(flags vk.DebugReportFlags) Severity {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return SeverityError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		return SeverityWarning
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return SeverityPerformance
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		return SeverityDebug
	default:
		return SeverityInfo
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	if sink := activeSink.Load(); sink != nil {
		sink.report(severityOf(flags), pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
