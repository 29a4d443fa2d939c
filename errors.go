package shaderbind

import (
	"errors"
	"fmt"

	"github.com/gogpu/shaderbind/bindgen"
	"github.com/gogpu/shaderbind/compiler"
	"github.com/gogpu/shaderbind/preprocess"
	"github.com/gogpu/shaderbind/registry"
	"github.com/gogpu/shaderbind/source"
	"github.com/gogpu/shaderbind/stage"
	"github.com/gogpu/shaderbind/typemap"
)

// ErrorKind categorizes pipeline errors.
type ErrorKind uint8

const (
	// KindUnknown is an error not produced by the pipeline.
	KindUnknown ErrorKind = iota

	// KindLayout is a structure registered without a stable layout.
	KindLayout

	// KindUnsupportedType is a field type missing from the type table.
	KindUnsupportedType

	// KindUnknownStructure is a placeholder naming an unregistered structure.
	KindUnknownStructure

	// KindMissingSource is a shader with neither src nor path.
	KindMissingSource

	// KindAmbiguousSource is a shader with more than one source attribute.
	KindAmbiguousSource

	// KindFileNotFound is a path attribute that names no regular file.
	KindFileNotFound

	// KindFileRead is a shader file that could not be read as text.
	KindFileRead

	// KindUnknownStage is a ty value outside the accepted stage names.
	KindUnknownStage

	// KindCompilation is a compiler failure.
	KindCompilation

	// KindReflection is a failure to generate bindings.
	KindReflection

	// KindAttribute is a malformed attribute set.
	KindAttribute
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindLayout:
		return "Layout"
	case KindUnsupportedType:
		return "UnsupportedType"
	case KindUnknownStructure:
		return "UnknownStructure"
	case KindMissingSource:
		return "MissingSource"
	case KindAmbiguousSource:
		return "AmbiguousSource"
	case KindFileNotFound:
		return "FileNotFound"
	case KindFileRead:
		return "FileRead"
	case KindUnknownStage:
		return "UnknownStage"
	case KindCompilation:
		return "Compilation"
	case KindReflection:
		return "Reflection"
	case KindAttribute:
		return "Attribute"
	default:
		return "Unknown"
	}
}

// KindOf classifies err by the first pipeline error found in its chain.
// Outer errors win, so a placeholder failure is UnknownStructure and a
// reflection failure stays Reflection whatever caused it.
func KindOf(err error) ErrorKind {
	for err != nil {
		if k := kindOne(err); k != KindUnknown {
			return k
		}
		err = errors.Unwrap(err)
	}
	return KindUnknown
}

func kindOne(err error) ErrorKind {
	switch err.(type) {
	case *registry.LayoutError:
		return KindLayout
	case *typemap.UnsupportedTypeError:
		return KindUnsupportedType
	case *registry.UnknownStructureError, *preprocess.PlaceholderError:
		return KindUnknownStructure
	case *source.MissingSourceError:
		return KindMissingSource
	case *source.AmbiguousSourceError:
		return KindAmbiguousSource
	case *source.FileNotFoundError:
		return KindFileNotFound
	case *source.FileReadError:
		return KindFileRead
	case *stage.UnknownStageError:
		return KindUnknownStage
	case *compiler.CompilationError:
		return KindCompilation
	case *bindgen.ReflectionError:
		return KindReflection
	case *AttributeError:
		return KindAttribute
	}
	return KindUnknown
}

// Attribute set errors, wrapped in *AttributeError.
var (
	ErrMissingStage     = errors.New(`shader has no "ty" attribute`)
	ErrDuplicateStage   = errors.New(`shader has more than one "ty" attribute`)
	ErrUnknownAttribute = errors.New("unknown shader attribute")
)

// AttributeError reports a malformed attribute set on shader Shader.
type AttributeError struct {
	Shader string
	// Attribute is the offending attribute name, if any.
	Attribute string
	Err       error
}

func (e *AttributeError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("shader %s: %v %q", e.Shader, e.Err, e.Attribute)
	}
	return fmt.Sprintf("shader %s: %v", e.Shader, e.Err)
}

func (e *AttributeError) Unwrap() error { return e.Err }
