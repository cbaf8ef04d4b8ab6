package inmemdb

import (
	"context"

	"github.com/honeynil/KudosClassroom/internal/models"
	repo "github.com/honeynil/KudosClassroom/internal/repository"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

type classRepository struct {
	db *DB
}

func NewClassRepository(db *DB) repo.ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) Create(_ context.Context, c *models.Class) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	c.ID = r.db.nextID("classes")
	c.TreasureBoxOpen = false
	c.CreatedAt = r.db.now()
	row := *c
	r.db.classes[c.ID] = &row
	return nil
}

func (r *classRepository) GetByID(_ context.Context, id int32) (*models.Class, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if c, ok := r.db.classes[id]; ok {
		row := *c
		return &row, nil
	}
	return nil, pkgerrors.NotFound("class", id)
}

func (r *classRepository) ListByTeacher(_ context.Context, teacherID int32) ([]models.Class, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	return sortedValues(r.db.classes, func(c *models.Class) bool { return c.TeacherID == teacherID }), nil
}

func (r *classRepository) Update(_ context.Context, c *models.Class) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	orig, ok := r.db.classes[c.ID]
	if !ok {
		return pkgerrors.NotFound("class", c.ID)
	}
	orig.Name = c.Name
	orig.ImageURL = c.ImageURL
	return nil
}

func (r *classRepository) Delete(_ context.Context, id int32) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.classes[id]; !ok {
		return pkgerrors.NotFound("class", id)
	}
	delete(r.db.classes, id)
	for pid, p := range r.db.prizes {
		if p.ClassID == id {
			r.db.deletePrize(pid)
		}
	}
	for _, s := range r.db.students {
		if s.ClassID != nil && *s.ClassID == id {
			s.ClassID = nil
		}
	}
	return nil
}

func (r *classRepository) ToggleTreasureBox(_ context.Context, id int32) (bool, error) {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	c, ok := r.db.classes[id]
	if !ok {
		return false, pkgerrors.NotFound("class", id)
	}
	c.TreasureBoxOpen = !c.TreasureBoxOpen
	return c.TreasureBoxOpen, nil
}

type prizeRepository struct {
	db *DB
}

func NewPrizeRepository(db *DB) repo.PrizeRepository {
	return &prizeRepository{db: db}
}

func (r *prizeRepository) Create(_ context.Context, p *models.Prize) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if p.Quantity < 0 || p.KudosCost < 0 {
		return pkgerrors.InvalidInput("quantity and kudos cost cannot be negative")
	}
	p.ID = r.db.nextID("prizes")
	row := *p
	r.db.prizes[p.ID] = &row
	return nil
}

func (r *prizeRepository) GetByID(_ context.Context, id int32) (*models.Prize, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if p, ok := r.db.prizes[id]; ok {
		row := *p
		return &row, nil
	}
	return nil, pkgerrors.NotFound("prize", id)
}

func (r *prizeRepository) ListByClass(_ context.Context, classID int32) ([]models.Prize, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	return sortedValues(r.db.prizes, func(p *models.Prize) bool { return p.ClassID == classID }), nil
}

func (r *prizeRepository) Update(_ context.Context, p *models.Prize) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	orig, ok := r.db.prizes[p.ID]
	if !ok {
		return pkgerrors.NotFound("prize", p.ID)
	}
	if p.Quantity < 0 || p.KudosCost < 0 {
		return pkgerrors.InvalidInput("quantity and kudos cost cannot be negative")
	}
	row := *p
	row.ClassID = orig.ClassID
	r.db.prizes[p.ID] = &row
	return nil
}

func (r *prizeRepository) Delete(_ context.Context, id int32) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.prizes[id]; !ok {
		return pkgerrors.NotFound("prize", id)
	}
	r.db.deletePrize(id)
	return nil
}

type categoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) repo.CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(_ context.Context, c *models.Category) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	c.ID = r.db.nextID("categories")
	row := *c
	r.db.categories[c.ID] = &row
	return nil
}

func (r *categoryRepository) GetByID(_ context.Context, id int32) (*models.Category, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	if c, ok := r.db.categories[id]; ok {
		row := *c
		return &row, nil
	}
	return nil, pkgerrors.NotFound("category", id)
}

func (r *categoryRepository) ListByTeacher(_ context.Context, teacherID int32) ([]models.Category, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	return sortedValues(r.db.categories, func(c *models.Category) bool { return c.TeacherID == teacherID }), nil
}

func (r *categoryRepository) Update(_ context.Context, c *models.Category) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	orig, ok := r.db.categories[c.ID]
	if !ok {
		return pkgerrors.NotFound("category", c.ID)
	}
	orig.Label = c.Label
	return nil
}

func (r *categoryRepository) Delete(_ context.Context, id, replaceID int32) error {
	r.db.mutex.Lock()
	defer r.db.mutex.Unlock()

	if _, ok := r.db.categories[id]; !ok {
		return pkgerrors.NotFound("category", id)
	}
	for _, p := range r.db.prizes {
		if p.CategoryID == id {
			p.CategoryID = replaceID
		}
	}
	delete(r.db.categories, id)
	return nil
}
