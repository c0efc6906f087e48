package field

import (
	"github.com/goliatone/go-formengine/pkg/model"
	"github.com/goliatone/go-formengine/pkg/upload"
	"github.com/goliatone/go-formengine/pkg/visibility"
)

type fileInstance struct {
	def    model.Field
	files  []upload.File
	stored any
}

func newFile(def model.Field, in Input) Instance {
	var files []upload.File
	for _, file := range in.Files {
		if file.Name == "" && file.Size == 0 {
			continue
		}
		files = append(files, file)
	}
	return &fileInstance{def: def, files: files, stored: in.Stored}
}

func (f *fileInstance) Field() model.Field { return f.def }

// Value returns the pending uploads. With nothing uploaded it returns the
// stored reference so an untouched file field keeps its value.
func (f *fileInstance) Value() any {
	if len(f.files) == 0 {
		return f.stored
	}
	return append([]upload.File(nil), f.files...)
}

func (f *fileInstance) Validate() []string {
	if len(f.files) == 0 {
		if f.def.Required && !visibility.Truthy(f.stored) {
			return []string{MessageRequired}
		}
		return nil
	}
	if len(f.files) > 1 && !f.def.Multiple {
		return []string{messageSingleFile}
	}

	var problems []string
	for _, file := range f.files {
		if err := upload.Check(file, f.def.Accept, f.def.MaxSize); err != nil {
			problems = append(problems, file.Name+": "+messageUpload(err, f.def.MaxSize))
		}
	}
	return problems
}
