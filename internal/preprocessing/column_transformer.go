package preprocessing

import (
	"fmt"

	"ermpipeline/internal/data"

	"github.com/shopspring/decimal"
)

// ColumnTransformer turns a raw feature dataset into a fixed-width numeric matrix.
// Numerical columns: median imputation, then scaling. Categorical columns:
// placeholder imputation, then one-hot encoding. All statistics come from Fit.
type ColumnTransformer struct {
	Numerical   []string
	Categorical []string

	imputer  *MedianImputer
	scaler   *Scaler
	constant *ConstantImputer
	encoder  *OneHotEncoder
	names    []string
	sources  []string
	fitted   bool
}

func NewColumnTransformer(numerical, categorical []string, scaleType, placeholder string) *ColumnTransformer {
	if scaleType == "" {
		scaleType = ScaleStandard
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &ColumnTransformer{
		Numerical:   numerical,
		Categorical: categorical,
		imputer:     NewMedianImputer(),
		scaler:      NewScaler(scaleType),
		constant:    NewConstantImputer(placeholder),
		encoder:     NewOneHotEncoder(placeholder),
	}
}

func (ct *ColumnTransformer) Fit(train *data.Dataset) error {
	if train.NumRows() == 0 {
		return data.ErrEmptyDataset
	}

	numeric, err := ct.numericColumns(train)
	if err != nil {
		return err
	}
	ct.imputer.Fit(numeric)
	if len(ct.Numerical) > 0 {
		imputed, err := ct.imputer.Transform(numeric)
		if err != nil {
			return err
		}
		if err := ct.scaler.Fit(imputed); err != nil {
			return fmt.Errorf("fit scaler: %w", err)
		}
	}

	categorical, err := ct.categoricalColumns(train)
	if err != nil {
		return err
	}
	ct.encoder.Fit(categorical)

	ct.names = []string{}
	ct.sources = []string{}
	for _, name := range ct.Numerical {
		ct.names = append(ct.names, name)
		ct.sources = append(ct.sources, name)
	}
	for j, name := range ct.Categorical {
		for _, cat := range ct.encoder.Categories[j] {
			ct.names = append(ct.names, name+"="+cat)
			ct.sources = append(ct.sources, name)
		}
	}

	ct.fitted = true
	return nil
}

func (ct *ColumnTransformer) Transform(ds *data.Dataset) ([][]float64, error) {
	if !ct.fitted {
		return nil, ErrNotFitted
	}

	out := make([][]float64, ds.NumRows())
	for i := range out {
		out[i] = make([]float64, 0, len(ct.names))
	}

	if len(ct.Numerical) > 0 {
		numeric, err := ct.numericColumns(ds)
		if err != nil {
			return nil, err
		}
		imputed, err := ct.imputer.Transform(numeric)
		if err != nil {
			return nil, err
		}
		scaled, err := ct.scaler.Transform(imputed)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = append(out[i], scaled[i]...)
		}
	}

	if len(ct.Categorical) > 0 {
		categorical, err := ct.categoricalColumns(ds)
		if err != nil {
			return nil, err
		}
		encoded, err := ct.encoder.Transform(categorical)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = append(out[i], encoded[i]...)
		}
	}
	return out, nil
}

func (ct *ColumnTransformer) FitTransform(train *data.Dataset) ([][]float64, error) {
	if err := ct.Fit(train); err != nil {
		return nil, err
	}
	return ct.Transform(train)
}

// FeatureNames names each output index: the column itself for numerical
// features, "column=category" for one-hot slots.
func (ct *ColumnTransformer) FeatureNames() []string { return ct.names }

// SourceColumns maps each output index back to its input column.
func (ct *ColumnTransformer) SourceColumns() []string { return ct.sources }

func (ct *ColumnTransformer) NumFeatures() int { return len(ct.names) }

func (ct *ColumnTransformer) Medians() []decimal.Decimal { return ct.imputer.Medians }

func (ct *ColumnTransformer) Scaler() *Scaler { return ct.scaler }

func (ct *ColumnTransformer) Categories() [][]string { return ct.encoder.Categories }

func (ct *ColumnTransformer) numericColumns(ds *data.Dataset) ([][]decimal.NullDecimal, error) {
	out := make([][]decimal.NullDecimal, len(ct.Numerical))
	for j, name := range ct.Numerical {
		col, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("numerical column %q not found", name)
		}
		out[j] = ParseColumn(col)
	}
	return out, nil
}

func (ct *ColumnTransformer) categoricalColumns(ds *data.Dataset) ([][]string, error) {
	out := make([][]string, len(ct.Categorical))
	for j, name := range ct.Categorical {
		col, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("categorical column %q not found", name)
		}
		out[j] = ct.constant.Transform(col)
	}
	return out, nil
}
