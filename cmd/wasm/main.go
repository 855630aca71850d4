//go:build js && wasm
// +build js,wasm

package main

import (
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/OscilloBP/pkg/logger"
	"github.com/himanishpuri/OscilloBP/pkg/oscillobp/pipeline"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorNoEstimate
)

var estimator = pipeline.NewEstimator(pipeline.WithLogger(logger.Discard()))

// Estimates blood pressure from a recording in the browser.
// Arguments: pressureArray, samplingRate (optional, default 100 Hz).
// Returns: {error: number, data: {SBP, DBP, Pulse} | string}
func estimateBloodPressure(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected arguments: pressureArray, samplingRate")
	}

	dataJS := args[0]
	if dataJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "pressureArray must be an Array or Float64Array")
	}

	fs := pipeline.DefaultSamplingRate
	if len(args) > 1 && !args[1].IsUndefined() && !args[1].IsNull() {
		if args[1].Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, "samplingRate must be a number")
		}
		fs = args[1].Float()
		if fs <= 0 {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sampling rate: %v", fs))
		}
	}

	length := dataJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "pressureArray is empty")
	}

	samples := make([]float64, length)
	for i := 0; i < length; i++ {
		val := dataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("pressureArray element %d is not a number", i))
		}
		samples[i] = val.Float()
	}

	res := estimator.Estimate(samples, fs)
	if !res.OK() {
		return makeErrorResponse(ErrorNoEstimate, "No estimate: the recording has too few usable oscillations")
	}

	data := js.Global().Get("Object").New()
	data.Set("SBP", *res.SBP)
	data.Set("DBP", *res.DBP)
	data.Set("Pulse", res.PulseRate)

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", data)
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	done := make(chan struct{})

	js.Global().Set("estimateBloodPressure", js.FuncOf(estimateBloodPressure))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "window object is undefined")
	}

	if !console.IsUndefined() {
		console.Call("log", "OscilloBP WASM module loaded and ready")
	}

	<-done
}
