package mapper

import (
	"fmt"
	"strings"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// MapGacetasToDataset flattens the federal gazette analyses into projects.
// It accepts {analyses: [...]} where each analysis carries registros inside
// analisis_completo (an object or a JSON string) or directly, and also a
// flat array of analyses or of registros.
func MapGacetasToDataset(raw []byte) []model.Project {
	return mapGacetas(decode(raw))
}

func mapGacetas(v any) []model.Project {
	out := []model.Project{}

	analyses := asList(v)
	if analyses == nil {
		if obj := asRecord(v); obj != nil {
			analyses = obj.list("analyses", "analisis", "data")
		}
	}

	flatIdx := 0
	for a, el := range analyses {
		analysis := asRecord(el)
		if analysis == nil {
			continue
		}

		registros, isAnalysis := registrosOf(analysis)
		if !isAnalysis {
			// A bare registro in a flat list.
			flatIdx++
			out = append(out, gacetaProject(nil, analysis, 1, flatIdx))
			continue
		}
		for r, item := range registros {
			if rec := asRecord(item); rec != nil {
				out = append(out, gacetaProject(analysis, rec, a+1, r+1))
			}
		}
	}
	return out
}

// registrosOf returns the registros of an analysis. isAnalysis is false
// when the object looks like a registro itself.
func registrosOf(analysis record) ([]any, bool) {
	if raw, ok := analysis["analisis_completo"]; ok {
		if full := asRecord(raw); full != nil {
			return full.list("registros", "proyectos"), true
		}
		return asList(raw), true
	}
	if _, ok := analysis["registros"]; ok {
		return analysis.list("registros"), true
	}
	return nil, false
}

func gacetaProject(analysis, item record, a, r int) model.Project {
	status := item.str("estatus", "status")
	if status == "" {
		status = model.StatusIngreso
	} else if strings.Contains(strings.ToLower(status), "resol") {
		status = model.StatusResolutivo
	}

	p := model.Project{
		ID:          fmt.Sprintf("GAC-%d-%d", a, r),
		Expediente:  item.str("clave_proyecto", "clave", "expediente"),
		Project:     item.str("proyecto_nombre", "nombre_proyecto", "proyecto"),
		Promoter:    item.str("promovente"),
		Type:        item.str("tipo_proyecto", "sector", "tipo"),
		Status:      status,
		Description: item.str("descripcion"),
		Impact:      item.str("seccion_documento", "impacto"),
		URL:         firstNonEmpty(item.str("url"), analysis.str("url", "pdf_url")),
		Filename:    firstNonEmpty(item.str("filename", "archivo"), analysis.str("filename", "archivo", "gaceta")),
		Source:      model.SourceGaceta,
	}
	finish(&p, item,
		item.str("fecha_ingreso", "fecha"),
		analysis.str("fecha_publicacion", "fecha"),
	)
	return p
}
