//go:build sd && cgo

// CGo bindings to stable-diffusion.cpp.
//
// Build requirements:
//   - stable-diffusion.cpp compiled as a shared library
//   - Header file: stable-diffusion.h
//
// Example:
//
//	CGO_CFLAGS="-I/path/to/stable-diffusion.cpp" \
//	CGO_LDFLAGS="-L/path/to/stable-diffusion.cpp/build -lstable-diffusion" \
//	go build -tags sd
package sdruntime

/*
#cgo CFLAGS: -I${SRCDIR}/../deps/stable-diffusion.cpp
#cgo LDFLAGS: -L${SRCDIR}/../lib -lstable-diffusion -lm -lstdc++
#cgo linux LDFLAGS: -Wl,-rpath,${SRCDIR}/../lib

#include <stdlib.h>
#include "stable-diffusion.h"

extern void goSDStepCallback(int step, int steps, float time, void* data);

static void set_step_callback() {
	sd_set_progress_callback((sd_progress_cb_t)goSDStepCallback, NULL);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// The stable-diffusion.cpp progress callback is process-global, so only one
// generation may run at a time. generateMu enforces that and activeStepFn
// holds the Go callback for the in-flight generation.
var (
	generateMu   sync.Mutex
	activeStepFn atomic.Value // StepFunc
	callbackOnce sync.Once
)

//export goSDStepCallback
func goSDStepCallback(step, steps C.int, _ C.float, _ unsafe.Pointer) {
	fn, _ := activeStepFn.Load().(StepFunc)
	if fn != nil {
		fn(int(step), int(steps))
	}
}

// sdHandle wraps the stable-diffusion.cpp context pointer.
type sdHandle struct {
	ctx   *C.sd_ctx_t
	valid bool
}

func loadContextImpl(modelPath string) (*sdHandle, error) {
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))

	params := C.sd_ctx_params_t{}
	C.sd_ctx_params_init(&params)
	params.model_path = cPath

	ctx := C.new_sd_ctx(&params)
	if ctx == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelLoadFailed, modelPath)
	}

	callbackOnce.Do(func() {
		C.set_step_callback()
	})

	return &sdHandle{ctx: ctx, valid: true}, nil
}

func generateImageImpl(h *sdHandle, params GenerateParams) (*GenerateResult, error) {
	if h == nil || !h.valid {
		return nil, fmt.Errorf("%w: handle is nil or invalid", ErrGenerationFailed)
	}

	generateMu.Lock()
	defer generateMu.Unlock()

	if params.OnStep != nil {
		activeStepFn.Store(params.OnStep)
		defer activeStepFn.Store(StepFunc(nil))
	}

	cPrompt := C.CString(params.Prompt)
	defer C.free(unsafe.Pointer(cPrompt))
	cNegative := C.CString(params.NegativePrompt)
	defer C.free(unsafe.Pointer(cNegative))

	genParams := C.sd_img_gen_params_t{}
	C.sd_img_gen_params_init(&genParams)
	genParams.prompt = cPrompt
	genParams.negative_prompt = cNegative
	genParams.width = C.int(params.Width)
	genParams.height = C.int(params.Height)
	genParams.sample_steps = C.int(params.Steps)
	genParams.guidance.txt_cfg = C.float(params.CFGScale)
	genParams.seed = C.int64_t(params.Seed)

	img := C.generate_image(h.ctx, &genParams)
	if img == nil || img.data == nil {
		return nil, fmt.Errorf("%w: backend returned no image", ErrGenerationFailed)
	}
	defer C.free(unsafe.Pointer(img.data))
	defer C.free(unsafe.Pointer(img))

	width := int(img.width)
	height := int(img.height)
	channels := int(img.channel)
	if channels != 3 {
		return nil, fmt.Errorf("%w: unexpected channel count %d", ErrGenerationFailed, channels)
	}

	pixels := C.GoBytes(unsafe.Pointer(img.data), C.int(width*height*channels))
	pngData, err := EncodeToPNG(pixels, width, height)
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		ImageData: pngData,
		Seed:      params.Seed,
		Width:     width,
		Height:    height,
	}, nil
}

func freeContextImpl(h *sdHandle) {
	if h == nil || !h.valid {
		return
	}
	h.valid = false
	if h.ctx != nil {
		C.free_sd_ctx(h.ctx)
		h.ctx = nil
	}
}

func backendInfoImpl() string {
	return "stable-diffusion.cpp (CGo)"
}
