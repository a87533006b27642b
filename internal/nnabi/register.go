//go:build darwin || freebsd || linux || windows

package nnabi

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// register binds every function variable to its nn_* symbol. RegisterLibFunc
// panics on a missing symbol or unsupported signature; that is recovered
// into an error so a partial or incompatible library fails Load cleanly.
func register(lib uintptr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register symbols: %v", r)
		}
	}()

	purego.RegisterLibFunc(&StrError, lib, "nn_strerror")

	purego.RegisterLibFunc(&EngineInit, lib, "nn_engine_init")
	purego.RegisterLibFunc(&EngineLoad, lib, "nn_engine_load")
	purego.RegisterLibFunc(&EngineRelease, lib, "nn_engine_release")
	purego.RegisterLibFunc(&EngineName, lib, "nn_engine_name")
	purego.RegisterLibFunc(&EngineVersion, lib, "nn_engine_version")

	purego.RegisterLibFunc(&ContextInit, lib, "nn_context_init")
	purego.RegisterLibFunc(&ContextRelease, lib, "nn_context_release")
	purego.RegisterLibFunc(&ContextEngine, lib, "nn_context_engine")
	purego.RegisterLibFunc(&ContextModel, lib, "nn_context_model")
	purego.RegisterLibFunc(&ContextModelLoad, lib, "nn_context_model_load")
	purego.RegisterLibFunc(&ContextModelUnload, lib, "nn_context_model_unload")
	purego.RegisterLibFunc(&ContextTensor, lib, "nn_context_tensor")
	purego.RegisterLibFunc(&ContextTensorIndex, lib, "nn_context_tensor_index")
	purego.RegisterLibFunc(&ContextRun, lib, "nn_context_run")

	purego.RegisterLibFunc(&ModelName, lib, "nn_model_name")
	purego.RegisterLibFunc(&ModelLabelCount, lib, "nn_model_label_count")
	purego.RegisterLibFunc(&ModelLabel, lib, "nn_model_label")
	purego.RegisterLibFunc(&ModelInputs, lib, "nn_model_inputs")
	purego.RegisterLibFunc(&ModelOutputs, lib, "nn_model_outputs")
	purego.RegisterLibFunc(&ModelLayerCount, lib, "nn_model_layer_count")
	purego.RegisterLibFunc(&ModelLayerName, lib, "nn_model_layer_name")
	purego.RegisterLibFunc(&ModelLayerType, lib, "nn_model_layer_type")
	purego.RegisterLibFunc(&ModelLayerDatatype, lib, "nn_model_layer_datatype")
	purego.RegisterLibFunc(&ModelLayerDatatypeID, lib, "nn_model_layer_datatype_id")
	purego.RegisterLibFunc(&ModelLayerZeros, lib, "nn_model_layer_zeros")
	purego.RegisterLibFunc(&ModelLayerScales, lib, "nn_model_layer_scales")
	purego.RegisterLibFunc(&ModelLayerAxis, lib, "nn_model_layer_axis")
	purego.RegisterLibFunc(&ModelLayerShape, lib, "nn_model_layer_shape")
	purego.RegisterLibFunc(&ModelLayerLookup, lib, "nn_model_layer_lookup")

	purego.RegisterLibFunc(&TensorInit, lib, "nn_tensor_init")
	purego.RegisterLibFunc(&TensorRelease, lib, "nn_tensor_release")
	purego.RegisterLibFunc(&TensorEngine, lib, "nn_tensor_engine")
	purego.RegisterLibFunc(&TensorAlloc, lib, "nn_tensor_alloc")
	purego.RegisterLibFunc(&TensorType, lib, "nn_tensor_type")
	purego.RegisterLibFunc(&TensorSetType, lib, "nn_tensor_set_type")
	purego.RegisterLibFunc(&TensorShape, lib, "nn_tensor_shape")
	purego.RegisterLibFunc(&TensorDims, lib, "nn_tensor_dims")
	purego.RegisterLibFunc(&TensorVolume, lib, "nn_tensor_volume")
	purego.RegisterLibFunc(&TensorSize, lib, "nn_tensor_size")
	purego.RegisterLibFunc(&TensorAxis, lib, "nn_tensor_axis")
	purego.RegisterLibFunc(&TensorZeros, lib, "nn_tensor_zeros")
	purego.RegisterLibFunc(&TensorSetScales, lib, "nn_tensor_set_scales")
	purego.RegisterLibFunc(&TensorScales, lib, "nn_tensor_scales")
	purego.RegisterLibFunc(&TensorDequant, lib, "nn_tensor_dequantize")
	purego.RegisterLibFunc(&TensorMapRO, lib, "nn_tensor_mapro")
	purego.RegisterLibFunc(&TensorMapRW, lib, "nn_tensor_maprw")
	purego.RegisterLibFunc(&TensorUnmap, lib, "nn_tensor_unmap")

	return nil
}
