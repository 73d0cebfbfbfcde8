package vulkan

import "gitlab.com/mstarongitlab/goutils/sliceutils"

const (
	DRMFormatInvalid  uint32 = 0
	DRMFormatXRGB8888 uint32 = 0x34325258
	DRMFormatARGB8888 uint32 = 0x34325241
	DRMFormatXBGR8888 uint32 = 0x34324258
	DRMFormatABGR8888 uint32 = 0x34324241

	DRMFormatModLinear uint64 = 0
)

type drmVKFormat struct {
	format     Format
	formatSRGB Format
	drm        uint32
	drmAlpha   uint32
}

// Formats a remote swapchain can turn into a shareable dma-buf.
var formatTable = []drmVKFormat{
	{FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, DRMFormatXBGR8888, DRMFormatABGR8888},
	{FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb, DRMFormatXRGB8888, DRMFormatARGB8888},
}

// DRMFormat maps a Vulkan format to its DRM fourcc, or DRMFormatInvalid.
func DRMFormat(f Format, ignoreAlpha bool) uint32 {
	for _, e := range formatTable {
		if e.format == f || e.formatSRGB == f {
			if ignoreAlpha {
				return e.drm
			}
			return e.drmAlpha
		}
	}
	return DRMFormatInvalid
}

// filterFormats keeps the host formats a remote swapchain supports, with
// the usual count protocol: a nil out only reports the count, a short out
// is filled up to *count and gets Incomplete, and *count is lowered to the
// number written when out had room to spare.
func filterFormats[T any](count *uint32, out []T, host []T, format func(T) Format) Result {
	supported := sliceutils.Filter(host, func(f T) bool {
		return DRMFormat(format(f), false) != DRMFormatInvalid
	})
	n := uint32(len(supported))
	if out == nil {
		*count = n
		return Success
	}
	copy(out[:min(int(*count), len(out))], supported)
	if *count < n {
		return Incomplete
	}
	*count = n
	return Success
}

func surfaceFormat(f SurfaceFormat) Format   { return f.Format }
func surfaceFormat2(f SurfaceFormat2) Format { return f.SurfaceFormat.Format }
