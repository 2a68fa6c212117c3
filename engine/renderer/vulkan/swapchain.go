package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/framekit/engine/core"
)

// DefaultSurfaceFormat is used when the requested format is not offered.
var DefaultSurfaceFormat = SurfaceFormat{
	Format:     FormatB8g8r8a8Unorm,
	ColorSpace: ColorSpaceSrgbNonlinear,
}

type SwapchainPreferences struct {
	Format      SurfaceFormat
	PresentMode PresentMode
}

// VulkanSwapchain owns the presentable images, their views and one
// render-complete semaphore per image.
type VulkanSwapchain struct {
	Handle           SwapchainKHR
	ImageFormat      SurfaceFormat
	PresentMode      PresentMode
	Extent           Extent2D
	Images           []Image
	Views            []ImageView
	RenderSemaphores []Semaphore

	prefs SwapchainPreferences
}

func NewSwapchain(device Device, width, height uint32, prefs SwapchainPreferences) (*VulkanSwapchain, error) {
	sc := &VulkanSwapchain{prefs: prefs}
	if err := sc.create(device, width, height); err != nil {
		return nil, err
	}
	return sc, nil
}

// SetPresentMode changes the mode requested by the next recreation.
func (sc *VulkanSwapchain) SetPresentMode(mode PresentMode) {
	sc.prefs.PresentMode = mode
}

// Recreate rebuilds the chain for the new surface size. It waits for the
// device to go idle before releasing the old images.
func (sc *VulkanSwapchain) Recreate(device Device, width, height uint32) error {
	if res := device.WaitIdle(); res != Success {
		return NewError("wait idle before swapchain recreation", res)
	}
	sc.destroy(device)
	return sc.create(device, width, height)
}

// Acquire returns the next image index. needsRecreate is true when the
// chain is out of date or suboptimal; the caller must skip the frame.
func (sc *VulkanSwapchain) Acquire(device Device, semaphore Semaphore) (imageIndex uint32, needsRecreate bool, err error) {
	idx, res := device.AcquireNextImage(sc.Handle, MaxTimeout, semaphore)
	switch res {
	case Success:
		if idx >= uint32(len(sc.Images)) {
			return 0, false, errors.Newf("acquired image index %d out of range (%d images)", idx, len(sc.Images))
		}
		return idx, false, nil
	case Suboptimal:
		core.LogDebug("swapchain acquire: suboptimal")
		return idx, true, nil
	case ErrorOutOfDate:
		core.LogDebug("swapchain acquire: out of date")
		return 0, true, nil
	}
	return 0, false, NewError("acquire next image", res)
}

// RenderSemaphore returns the render-complete semaphore of an acquired image.
func (sc *VulkanSwapchain) RenderSemaphore(imageIndex uint32) Semaphore {
	return sc.RenderSemaphores[imageIndex]
}

// Present queues the image once its render-complete semaphore signals.
func (sc *VulkanSwapchain) Present(device Device, queue Queue, imageIndex uint32) (needsRecreate bool, err error) {
	res := device.QueuePresent(queue, PresentInfo{
		Swapchain:     sc.Handle,
		ImageIndex:    imageIndex,
		WaitSemaphore: sc.RenderSemaphore(imageIndex),
	})
	switch res {
	case Success:
		return false, nil
	case Suboptimal, ErrorOutOfDate:
		core.LogDebug("swapchain present: %s", ResultString(res, false))
		return true, nil
	}
	return false, NewError("queue present", res)
}

// Destroy releases the chain. The device must be idle.
func (sc *VulkanSwapchain) Destroy(device Device) {
	sc.destroy(device)
}

func (sc *VulkanSwapchain) create(device Device, width, height uint32) error {
	support, res := device.SurfaceSupport()
	if res != Success {
		return NewError("query surface support", res)
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return errors.New("surface reports no formats or present modes")
	}

	sc.ImageFormat = chooseSurfaceFormat(support.Formats, sc.prefs.Format)
	sc.PresentMode = choosePresentMode(support.PresentModes, sc.prefs.PresentMode)
	sc.Extent = chooseExtent(support, width, height)
	if sc.Extent.IsZero() {
		return errors.Wrapf(core.ErrSurfaceZeroExtent, "swapchain %dx%d", sc.Extent.Width, sc.Extent.Height)
	}

	imageCount := support.MinImageCount + 1
	if support.MaxImageCount > 0 && imageCount > support.MaxImageCount {
		imageCount = support.MaxImageCount
	}

	handle, res := device.CreateSwapchain(SwapchainCreateInfo{
		MinImageCount: imageCount,
		Format:        sc.ImageFormat,
		Extent:        sc.Extent,
		PresentMode:   sc.PresentMode,
		Usage:         ImageUsageColorAttachment | ImageUsageTransferDst,
	})
	if res != Success {
		return NewError("create swapchain", res)
	}
	sc.Handle = handle

	images, res := device.GetSwapchainImages(handle)
	if res != Success {
		sc.destroy(device)
		return NewError("get swapchain images", res)
	}
	sc.Images = images

	for _, img := range images {
		view, res := device.CreateImageView(ImageViewCreateInfo{
			Image:  img,
			Format: sc.ImageFormat.Format,
			Aspect: ImageAspectColor,
		})
		if res != Success {
			sc.destroy(device)
			return NewError("create swapchain image view", res)
		}
		sc.Views = append(sc.Views, view)

		sem, err := NewSemaphore(device)
		if err != nil {
			sc.destroy(device)
			return err
		}
		sc.RenderSemaphores = append(sc.RenderSemaphores, sem)
	}

	core.LogInfo("swapchain created: %dx%d, %d images, %s, %s",
		sc.Extent.Width, sc.Extent.Height, len(sc.Images), sc.ImageFormat.Format, sc.PresentMode)
	return nil
}

func (sc *VulkanSwapchain) destroy(device Device) {
	for _, sem := range sc.RenderSemaphores {
		device.DestroySemaphore(sem)
	}
	sc.RenderSemaphores = nil

	// Only destroy the views, not the images, since those are owned by the swapchain.
	for _, view := range sc.Views {
		device.DestroyImageView(view)
	}
	sc.Views = nil
	sc.Images = nil

	if sc.Handle != 0 {
		device.DestroySwapchain(sc.Handle)
		sc.Handle = 0
	}
}

func chooseSurfaceFormat(available []SurfaceFormat, desired SurfaceFormat) SurfaceFormat {
	// a single undefined entry means the surface takes anything
	if len(available) == 1 && available[0].Format == FormatUndefined {
		return desired
	}
	for _, f := range available {
		if f == desired {
			return f
		}
	}
	for _, f := range available {
		if f == DefaultSurfaceFormat {
			return f
		}
	}
	return available[0]
}

func choosePresentMode(available []PresentMode, desired PresentMode) PresentMode {
	for _, m := range available {
		if m == desired {
			return m
		}
	}
	// FIFO is always supported
	return PresentModeFifo
}

func chooseExtent(support SurfaceSupport, width, height uint32) Extent2D {
	if support.CurrentExtent.Width != math.MaxUint32 {
		return support.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	return Extent2D{
		Width:  core.Clamp(width, support.MinImageExtent.Width, support.MaxImageExtent.Width),
		Height: core.Clamp(height, support.MinImageExtent.Height, support.MaxImageExtent.Height),
	}
}
