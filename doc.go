// Package randsearch compares randomized and exhaustive hyperparameter search
// for classifiers written in pure Go on top of gonum.
//
// Hyperparameter candidates are drawn from uniform or normal distributions
// with an explicitly seeded source and clamped into each parameter's domain.
// RandomizedSearchCV then evaluates n_iter distinct combinations from the
// cross product of the candidate sequences with k-fold cross-validation,
// while GridSearchCV evaluates all of them. Asking for more trials than
// there are combinations is an error, never a silent truncation.
//
// # Quick Start
//
//	positive, _ := model_selection.Positive("C", 1e-3)
//	cs, err := model_selection.Candidates[float64](
//	    model_selection.Normal{Mean: 1, Std: 0.5}, 10, positive,
//	    model_selection.NewSource(1))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	space := model_selection.ParamSpace{model_selection.FloatParam("C", cs)}
//	factory := func(p model_selection.Params) (model.Classifier, error) {
//	    return linear_model.NewLogisticRegression(linear_model.WithLRC(p.Float("C"))), nil
//	}
//
//	search := model_selection.NewRandomizedSearchCV(factory, space, 5,
//	    model_selection.WithRandomState(1))
//	if err := search.Fit(XTrain, yTrain); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(search.BestParams(), search.BestScore())
//
// # Packages
//
//   - sklearn/model_selection: distributions, domains, candidate sampling,
//     KFold, StratifiedKFold, TrainTestSplit, RandomizedSearchCV, GridSearchCV
//   - sklearn/ensemble: RandomForestClassifier
//   - sklearn/svm: SVC
//   - sklearn/linear_model: LogisticRegression
//   - sklearn/tree: DecisionTreeClassifier
//   - sklearn/pipeline: scaler + classifier pipelines
//   - preprocessing: StandardScaler, MinMaxScaler
//   - metrics: accuracy, confusion matrix, classification report
//   - datasets: delimited table loading and the red wine quality dataset
//   - pkg/errors, pkg/log: error types and structured logging
//
// The winesearch command (cmd/winesearch) runs the full comparison on the
// red wine quality dataset.
package randsearch
