package dirminify

import "sort"

func SortFilesByPath(files []FileObject) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	},
	)
}

func SortErroredFilesByPath(files []ErroredFileObject) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	},
	)
}
