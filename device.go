package framevk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

// DiscreteBonus is added to the score of discrete GPUs.
const DiscreteBonus = 1000

// DeviceCandidate is everything scoring needs to know about one physical device.
type DeviceCandidate struct {
	Handle              vk.PhysicalDevice
	Name                string
	Discrete            bool
	MaxImageDimension2D uint32
	GeometryShader      bool
	Queues              QueueFamilyIndices
	ExtensionsSupported bool
	// Surface query results, only meaningful when NeedsSurface is set.
	NeedsSurface   bool
	SurfaceFormats int
	PresentModes   int
}

// PhysicalDeviceChoice is the winning candidate.
type PhysicalDeviceChoice struct {
	Device   vk.PhysicalDevice
	Name     string
	Graphics uint32
	Present  uint32
	Score    uint32
}

// ScoreDevice rates a candidate. Zero means unusable.
func ScoreDevice(c DeviceCandidate) uint32 {
	if !c.GeometryShader {
		return 0
	}
	if !c.Queues.Complete(c.NeedsSurface) || !c.ExtensionsSupported {
		return 0
	}
	if c.NeedsSurface && (c.SurfaceFormats == 0 || c.PresentModes == 0) {
		return 0
	}
	score := c.MaxImageDimension2D
	if c.Discrete {
		score += DiscreteBonus
	}
	return score
}

// PickDevice returns the highest scoring candidate. Among equal top scores the
// first enumerated candidate wins.
func PickDevice(candidates []DeviceCandidate) (PhysicalDeviceChoice, error) {
	var best PhysicalDeviceChoice
	for _, c := range candidates {
		score := ScoreDevice(c)
		if score > best.Score {
			best = PhysicalDeviceChoice{
				Device:   c.Handle,
				Name:     c.Name,
				Graphics: c.Queues.Graphics,
				Present:  c.Queues.Present,
				Score:    score,
			}
		}
	}
	if best.Score == 0 {
		return best, errors.WithStack(ErrDeviceNotFound)
	}
	return best, nil
}

// SelectDevice enumerates the physical devices of instance and picks the best one.
// Pass vk.NullSurface to select a device for offscreen use.
func SelectDevice(instance vk.Instance, surface vk.Surface, required []string, log *slog.Logger) (PhysicalDeviceChoice, error) {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(instance, &count, nil)
	if err := newError(ret, ErrInitialization, "vkEnumeratePhysicalDevices"); err != nil {
		return PhysicalDeviceChoice{}, err
	}
	if count == 0 {
		return PhysicalDeviceChoice{}, errors.WithMessage(ErrDeviceNotFound, "no GPU devices found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(instance, &count, gpus)
	if err := newError(ret, ErrInitialization, "vkEnumeratePhysicalDevices"); err != nil {
		return PhysicalDeviceChoice{}, err
	}

	candidates := make([]DeviceCandidate, 0, count)
	for _, gpu := range gpus[:count] {
		c, err := probeDevice(gpu, surface, required)
		if err != nil {
			return PhysicalDeviceChoice{}, err
		}
		log.Debug("physical device",
			slog.String("name", c.Name),
			slog.Bool("discrete", c.Discrete),
			slog.Uint64("score", uint64(ScoreDevice(c))))
		candidates = append(candidates, c)
	}
	choice, err := PickDevice(candidates)
	if err != nil {
		return choice, err
	}
	log.Info("selected physical device",
		slog.String("name", choice.Name),
		slog.Uint64("score", uint64(choice.Score)),
		slog.Uint64("graphics_family", uint64(choice.Graphics)),
		slog.Uint64("present_family", uint64(choice.Present)))
	return choice, nil
}

func probeDevice(gpu vk.PhysicalDevice, surface vk.Surface, required []string) (DeviceCandidate, error) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	props.Limits.Deref()
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()

	c := DeviceCandidate{
		Handle:              gpu,
		Name:                vk.ToString(props.DeviceName[:]),
		Discrete:            props.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu,
		MaxImageDimension2D: props.Limits.MaxImageDimension2D,
		GeometryShader:      features.GeometryShader.B(),
		NeedsSurface:        surface != vk.NullSurface,
	}

	var present func(uint32) bool
	if c.NeedsSurface {
		present = func(family uint32) bool {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(gpu, family, surface, &supported)
			return supported.B()
		}
	}
	c.Queues = FindQueueFamilies(queueFamilyFlags(gpu), present)

	actual, err := DeviceExtensions(gpu)
	if err != nil {
		return c, err
	}
	c.ExtensionsSupported = len(ExtensionSet{Required: required, Actual: actual}.Missing()) == 0

	if c.NeedsSurface && c.ExtensionsSupported {
		var formats, modes uint32
		vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formats, nil)
		vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &modes, nil)
		c.SurfaceFormats, c.PresentModes = int(formats), int(modes)
	}
	return c, nil
}
