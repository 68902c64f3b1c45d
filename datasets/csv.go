package datasets

import (
	"encoding/csv"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/mlrun/model"
	"go-ml.dev/pkg/zorros/zorros"
	"io"
	"strconv"
	"strings"
)

/*
CSV reads named feature and label columns from a csv with header
*/
type CSV struct {
	Source   iokit.Input
	Features []string
	Label    string
}

func (c CSV) Dataset() (ds model.Dataset, err error) {
	if len(c.Features) == 0 || c.Label == "" {
		return ds, zorros.Errorf("csv dataset needs feature and label columns")
	}
	rd, err := c.Source.Open()
	if err != nil {
		return ds, zorros.Trace(err)
	}
	defer rd.Close()
	r := csv.NewReader(rd)
	r.ReuseRecord = true
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err == io.EOF {
		return ds, zorros.Errorf("csv has no header")
	}
	if err != nil {
		return ds, zorros.Trace(err)
	}
	index := map[string]int{}
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	cols := make([]int, len(c.Features))
	for j, f := range c.Features {
		i, ok := index[f]
		if !ok {
			return ds, zorros.Errorf("csv has no feature column `%v`", f)
		}
		cols[j] = i
	}
	label, ok := index[c.Label]
	if !ok {
		return ds, zorros.Errorf("csv has no label column `%v`", c.Label)
	}
	ds.FeatureNames = append([]string(nil), c.Features...)
	ds.Label = c.Label
	for line := 2; ; line++ {
		rec, e := r.Read()
		if e == io.EOF {
			break
		}
		if e != nil {
			return ds, zorros.Trace(e)
		}
		x := make([]float64, len(cols))
		for j, i := range cols {
			if x[j], e = parse(rec, i); e != nil {
				return ds, zorros.Errorf("csv line %d, column `%v`: %v", line, c.Features[j], e.Error())
			}
		}
		y, e := parse(rec, label)
		if e != nil {
			return ds, zorros.Errorf("csv line %d, column `%v`: %v", line, c.Label, e.Error())
		}
		ds.Features = append(ds.Features, x)
		ds.Labels = append(ds.Labels, y)
	}
	if ds.Len() == 0 {
		return ds, zorros.Errorf("csv has no rows")
	}
	return
}

func parse(rec []string, i int) (float64, error) {
	if i >= len(rec) {
		return 0, zorros.Errorf("value is missing")
	}
	return strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
}
