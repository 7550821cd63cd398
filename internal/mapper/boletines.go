package mapper

import (
	"fmt"
	"strconv"

	"github.com/mapeo-verde/mapeo-verde-api/internal/model"
)

// MapBoletinesToProjects flattens a bulletins file into projects. The input
// is either an array of bulletins or an object with a boletines or data
// array. Each bulletin's proyectos_ingresados become Ingreso records and its
// resolutivos_emitidos become Resolutivo Emitido records.
func MapBoletinesToProjects(raw []byte) []model.Project {
	return mapBoletines(decode(raw))
}

func mapBoletines(v any) []model.Project {
	out := []model.Project{}

	bulletins := asList(v)
	if bulletins == nil {
		if obj := asRecord(v); obj != nil {
			bulletins = obj.list("boletines", "data")
		}
	}

	for i, b := range bulletins {
		bulletin := asRecord(b)
		if bulletin == nil {
			continue
		}
		bulletinID := bulletin.str("id", "boletin_id", "numero_boletin", "boletin")
		if bulletinID == "" {
			bulletinID = "B" + strconv.Itoa(i+1)
		}

		for j, item := range bulletin.list("proyectos_ingresados") {
			if rec := asRecord(item); rec != nil {
				out = append(out, boletinProject(bulletin, rec, bulletinID, "", j, model.StatusIngreso))
			}
		}
		for j, item := range bulletin.list("resolutivos_emitidos") {
			if rec := asRecord(item); rec != nil {
				out = append(out, boletinProject(bulletin, rec, bulletinID, "R", j, model.StatusResolutivo))
			}
		}
	}
	return out
}

func boletinProject(bulletin, item record, bulletinID, prefix string, idx int, status string) model.Project {
	numero := item.str("numero", "no", "num")
	if numero == "" {
		numero = strconv.Itoa(idx + 1)
	}

	p := model.Project{
		ID:          fmt.Sprintf("%s-%s%s", bulletinID, prefix, numero),
		Expediente:  item.str("expediente", "clave"),
		Project:     item.str("nombre_proyecto", "proyecto", "nombre"),
		Promoter:    item.str("promovente"),
		Type:        item.str("tipo", "tipo_proyecto", "modalidad"),
		Status:      status,
		Description: item.str("descripcion"),
		Impact:      item.str("impacto", "impacto_ambiental"),
		URL:         firstNonEmpty(item.str("url"), bulletin.str("url")),
		Filename:    firstNonEmpty(item.str("filename", "archivo"), bulletin.str("filename", "archivo")),
		Source:      model.SourceBoletin,
	}
	finish(&p, item,
		item.str("fecha", "fecha_ingreso", "fecha_resolucion"),
		bulletin.str("fecha", "fecha_publicacion"),
	)
	return p
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
