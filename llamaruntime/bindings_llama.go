//go:build llama && cgo

// CGo bindings to llama.cpp.
//
// Build requirements:
//   - llama.cpp compiled as a shared library (libllama.so/dylib/dll)
//   - Headers in deps/llama.cpp/include or the system include path
//
// Example:
//
//	CGO_CFLAGS="-I/path/to/llama.cpp/include" \
//	CGO_LDFLAGS="-L/path/to/llama.cpp/build -lllama" \
//	go build -tags llama
package llamaruntime

/*
#cgo CFLAGS: -I${SRCDIR}/../deps/llama.cpp/include -I${SRCDIR}/../deps/llama.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../lib -lllama -lm -lstdc++
#cgo linux LDFLAGS: -Wl,-rpath,${SRCDIR}/../lib

#include <stdlib.h>
#include <string.h>
#include "llama.h"

// generate_text runs a simple prompt -> completion loop and writes the
// result into out (caller-allocated, out_cap bytes). Returns the number of
// bytes written, or a negative value on failure.
static int generate_text(struct llama_model *model, struct llama_context *lctx,
                         const char *prompt, int max_tokens,
                         float temperature, float top_p, int top_k, float repeat_penalty,
                         char *out, int out_cap) {
	const struct llama_vocab *vocab = llama_model_get_vocab(model);

	int n_prompt = -llama_tokenize(vocab, prompt, strlen(prompt), NULL, 0, true, true);
	if (n_prompt <= 0) return -1;

	llama_token *tokens = malloc(sizeof(llama_token) * n_prompt);
	if (tokens == NULL) return -2;
	if (llama_tokenize(vocab, prompt, strlen(prompt), tokens, n_prompt, true, true) < 0) {
		free(tokens);
		return -1;
	}

	struct llama_sampler_chain_params sparams = llama_sampler_chain_default_params();
	struct llama_sampler *smpl = llama_sampler_chain_init(sparams);
	llama_sampler_chain_add(smpl, llama_sampler_init_penalties(64, repeat_penalty, 0.0f, 0.0f));
	llama_sampler_chain_add(smpl, llama_sampler_init_top_k(top_k));
	llama_sampler_chain_add(smpl, llama_sampler_init_top_p(top_p, 1));
	llama_sampler_chain_add(smpl, llama_sampler_init_temp(temperature));
	llama_sampler_chain_add(smpl, llama_sampler_init_dist(LLAMA_DEFAULT_SEED));

	struct llama_batch batch = llama_batch_get_one(tokens, n_prompt);

	int written = 0;
	for (int i = 0; i < max_tokens; i++) {
		if (llama_decode(lctx, batch) != 0) break;

		llama_token tok = llama_sampler_sample(smpl, lctx, -1);
		if (llama_vocab_is_eog(vocab, tok)) break;

		char piece[256];
		int n = llama_token_to_piece(vocab, tok, piece, sizeof(piece), 0, true);
		if (n < 0) break;
		if (written + n >= out_cap) break;
		memcpy(out + written, piece, n);
		written += n;

		batch = llama_batch_get_one(&tok, 1);
	}

	llama_sampler_free(smpl);
	free(tokens);
	return written;
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// backendOnce initializes the llama.cpp backend exactly once per process.
var backendOnce sync.Once

// modelHandle wraps the llama.cpp model and context pointers.
type modelHandle struct {
	model *C.struct_llama_model
	lctx  *C.struct_llama_context
	valid bool
}

func loadModelImpl(config ModelConfig) (*modelHandle, error) {
	backendOnce.Do(func() {
		C.llama_backend_init()
	})

	cPath := C.CString(config.ModelPath)
	defer C.free(unsafe.Pointer(cPath))

	mparams := C.llama_model_default_params()
	mparams.n_gpu_layers = C.int32_t(config.NumGPULayers)
	mparams.use_mmap = C.bool(config.UseMMap)

	model := C.llama_model_load_from_file(cPath, mparams)
	if model == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelLoadFail, config.ModelPath)
	}

	cparams := C.llama_context_default_params()
	cparams.n_ctx = C.uint32_t(config.ContextSize)
	cparams.n_batch = C.uint32_t(config.BatchSize)
	cparams.n_threads = C.int32_t(config.NumThreads)

	lctx := C.llama_init_from_model(model, cparams)
	if lctx == nil {
		C.llama_model_free(model)
		return nil, fmt.Errorf("%w: context creation failed", ErrModelLoadFail)
	}

	return &modelHandle{model: model, lctx: lctx, valid: true}, nil
}

func inferTextImpl(ctx context.Context, h *modelHandle, params InferenceParams) (string, error) {
	if h == nil || !h.valid {
		return "", fmt.Errorf("%w: handle is nil or invalid", ErrInferenceFail)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cPrompt := C.CString(params.Prompt)
	defer C.free(unsafe.Pointer(cPrompt))

	// Generous output buffer: ~8 bytes per token covers multi-byte pieces.
	outCap := params.MaxTokens * 8
	out := (*C.char)(C.malloc(C.size_t(outCap)))
	defer C.free(unsafe.Pointer(out))

	n := C.generate_text(h.model, h.lctx, cPrompt,
		C.int(params.MaxTokens),
		C.float(params.Temperature), C.float(params.TopP),
		C.int(params.TopK), C.float(params.RepeatPenalty),
		out, C.int(outCap))
	if n < 0 {
		return "", fmt.Errorf("%w: llama.cpp returned %d", ErrInferenceFail, int(n))
	}

	return C.GoStringN(out, n), nil
}

func freeModelImpl(h *modelHandle) {
	if h == nil || !h.valid {
		return
	}
	h.valid = false
	if h.lctx != nil {
		C.llama_free(h.lctx)
		h.lctx = nil
	}
	if h.model != nil {
		C.llama_model_free(h.model)
		h.model = nil
	}
}

func backendInfoImpl() string {
	return "llama.cpp (CGo)"
}
